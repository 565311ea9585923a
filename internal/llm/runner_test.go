package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"sempervigil.dev/sempervigil/internal/domain"
	"sempervigil.dev/sempervigil/internal/repository"
)

func newTestRunner(t *testing.T, provider Provider) (*Runner, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := sqlx.NewDb(mockDB, "postgres")
	repos := repository.New(db)

	router := NewRouter(map[string]string{"summarize_article": "default"})
	router.AddProfile("default", provider, "gpt-4o-mini", 256, 0.1)

	return NewRunner(router, repos.LLMRuns), mock, func() { mockDB.Close() }
}

func TestRunner_JournalsSuccessfulCall(t *testing.T) {
	provider := &fakeProvider{name: "openai-compat", resp: &Response{Content: "done", PromptTokens: 10, OutputTokens: 5}}
	runner, mock, closeDB := newTestRunner(t, provider)
	defer closeDB()

	mock.ExpectExec("INSERT INTO llm_runs").
		WithArgs("summarize_article", "openai-compat", "gpt-4o-mini", "article", "art-1",
			10, 5, sqlmock.AnyArg(), true, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	resp, err := runner.Run(context.Background(), domain.LLMStageSummarizeArticle, "article", "art-1", "system", "user")
	require.NoError(t, err)
	require.Equal(t, "done", resp.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_JournalsFailedCallAndSurfacesOriginalError(t *testing.T) {
	callErr := errors.New("upstream rejected request")
	provider := &fakeProvider{name: "openai-compat", err: callErr}
	runner, mock, closeDB := newTestRunner(t, provider)
	defer closeDB()

	mock.ExpectExec("INSERT INTO llm_runs").
		WithArgs("summarize_article", "openai-compat", "gpt-4o-mini", "article", "art-1",
			0, 0, sqlmock.AnyArg(), false, callErr.Error(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := runner.Run(context.Background(), domain.LLMStageSummarizeArticle, "article", "art-1", "system", "user")
	require.Error(t, err)
	require.Equal(t, callErr, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_SurfacesCallErrorEvenWhenJournalWriteFails(t *testing.T) {
	callErr := errors.New("upstream rejected request")
	provider := &fakeProvider{name: "openai-compat", err: callErr}
	runner, mock, closeDB := newTestRunner(t, provider)
	defer closeDB()

	mock.ExpectExec("INSERT INTO llm_runs").WillReturnError(errors.New("db unavailable"))

	_, err := runner.Run(context.Background(), domain.LLMStageSummarizeArticle, "article", "art-1", "system", "user")
	require.Error(t, err)
	require.Equal(t, callErr, err)
}

func TestRunner_FailsFastWhenStageHasNoRoute(t *testing.T) {
	provider := &fakeProvider{name: "openai-compat", resp: &Response{Content: "unused"}}
	runner, _, closeDB := newTestRunner(t, provider)
	defer closeDB()

	_, err := runner.Run(context.Background(), domain.LLMStageEventSummary, "article", "art-1", "system", "user")
	require.Error(t, err)
}
