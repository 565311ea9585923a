package jobs

import (
	"errors"
	"testing"

	river "github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
)

func TestClassify_NilErrorPassesThrough(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassify_TransientErrorIsReturnedAsIs(t *testing.T) {
	err := apperrors.Transient(apperrors.CodeSourceFetchFailed, "upstream unavailable")
	got := classify(err)
	assert.Same(t, error(err), got)
}

func TestClassify_PermanentErrorBecomesJobCancel(t *testing.T) {
	err := apperrors.Permanent(apperrors.CodeSourceParseFailed, "malformed feed")
	got := classify(err)

	var cancelErr *river.JobCancelError
	assert.ErrorAs(t, got, &cancelErr)
}

func TestClassify_UnclassifiedErrorIsTreatedAsRetryable(t *testing.T) {
	got := classify(errors.New("boom"))

	var cancelErr *river.JobCancelError
	assert.False(t, errors.As(got, &cancelErr))
}
