package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
)

func TestVoteRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("INSERT INTO votes").
		WithArgs(int64(5), true, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(77)))
	mock.ExpectExec("UPDATE prices SET updated_at").
		WithArgs(int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ip := "9.9.9.9"
	repo := NewVoteRepo(mock)
	id, err := repo.Create(context.Background(), 5, true, &ip)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_Create_PriceNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	repo := NewVoteRepo(mock)
	_, err = repo.Create(context.Background(), 404, false, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_Tally(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM votes").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"up", "down"}).AddRow(8, 1))

	repo := NewVoteRepo(mock)
	tally, err := repo.Tally(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.VoteTally{Upvotes: 8, Downvotes: 1}, tally)
	assert.NoError(t, mock.ExpectationsWereMet())
}
