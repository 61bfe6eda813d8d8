// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/accountdesk/internal/models"
	"codeberg.org/oliverandrich/accountdesk/internal/repository"
	"codeberg.org/oliverandrich/accountdesk/internal/services/email"
	"codeberg.org/oliverandrich/accountdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(name, address string) *models.User {
	return &models.User{
		Name:         name,
		Email:        address,
		PasswordHash: "hash",
	}
}

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := newUser("Alice", "Alice@Example.com")
	user.VerificationTokenHash = email.HashToken("tok")

	err := repo.CreateUser(ctx, user)

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.StatusUnverified, user.Status)
	assert.False(t, user.RegisteredAt.IsZero())

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RegisteredAt, stored.RegisteredAt)
	assert.Nil(t, stored.LastLoginAt)
	assert.Equal(t, user.VerificationTokenHash, stored.VerificationTokenHash)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, newUser("A", "A@x.com")))

	err := repo.CreateUser(ctx, newUser("B", "a@x.com"))

	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUser_ConcurrentDuplicates(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateUser(ctx, newUser("Racer", "race@x.com"))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, repository.ErrDuplicateEmail):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dup)
}

func TestCreateUser_IDsNotReused(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	first := newUser("A", "a@x.com")
	require.NoError(t, repo.CreateUser(ctx, first))
	_, err := repo.DeleteUsers(ctx, []int64{first.ID})
	require.NoError(t, err)

	second := newUser("A", "a@x.com")
	require.NoError(t, repo.CreateUser(ctx, second))

	assert.Greater(t, second.ID, first.ID)
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), 999)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	created := testutil.NewTestUser(t, repo, "Alice", "alice@x.com")

	user, err := repo.GetUserByEmail(context.Background(), "  ALICE@X.COM ")

	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "Alice", user.Name)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByEmail(context.Background(), "nobody@x.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByVerificationToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "Alice", "alice@x.com",
		testutil.WithStatus(models.StatusUnverified), testutil.WithToken("secret"))

	user, err := repo.GetUserByVerificationToken(ctx, email.HashToken("secret"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = repo.GetUserByVerificationToken(ctx, email.HashToken("other"))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetUserByVerificationToken(ctx, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUsersByIDs(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	a := testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com")
	testutil.NewTestUser(t, repo, "C", "c@x.com")

	users, err := repo.GetUsersByIDs(context.Background(), []int64{b.ID, a.ID, 404})

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, a.ID, users[0].ID)
	assert.Equal(t, b.ID, users[1].ID)

	users, err = repo.GetUsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestListUsers_Ordering(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	nullOld := testutil.NewTestUser(t, repo, "null-old", "n1@x.com", testutil.WithRegisteredAt(base))
	t1User := testutil.NewTestUser(t, repo, "t1", "t1@x.com", testutil.WithRegisteredAt(base.Add(time.Hour)))
	nullNew := testutil.NewTestUser(t, repo, "null-new", "n2@x.com", testutil.WithRegisteredAt(base.Add(2*time.Hour)))
	t2User := testutil.NewTestUser(t, repo, "t2", "t2@x.com", testutil.WithRegisteredAt(base.Add(-time.Hour)))

	require.NoError(t, repo.TouchLastLogin(ctx, t1User.ID, base.Add(24*time.Hour)))
	require.NoError(t, repo.TouchLastLogin(ctx, t2User.ID, base.Add(48*time.Hour)))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	assert.Equal(t, []int64{t2User.ID, t1User.ID, nullNew.ID, nullOld.ID}, ids)
	require.NotNil(t, users[0].LastLoginAt)
	assert.Equal(t, base.Add(48*time.Hour), *users[0].LastLoginAt)
}

func TestListUsers_TiesBrokenByID(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := testutil.NewTestUser(t, repo, "first", "f@x.com", testutil.WithRegisteredAt(at))
	second := testutil.NewTestUser(t, repo, "second", "s@x.com", testutil.WithRegisteredAt(at))

	users, err := repo.ListUsers(context.Background())

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, second.ID, users[0].ID)
	assert.Equal(t, first.ID, users[1].ID)
}

func TestUpdateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "Alice", "alice@x.com", testutil.WithToken("tok"))

	now := time.Now().UTC().Truncate(time.Microsecond)
	user.Name = "Alice B."
	user.Status = models.StatusBlocked
	user.LastLoginAt = &now
	user.VerificationTokenHash = ""

	require.NoError(t, repo.UpdateUser(ctx, user))

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", stored.Name)
	assert.Equal(t, models.StatusBlocked, stored.Status)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, now, *stored.LastLoginAt)
	assert.Empty(t, stored.VerificationTokenHash)
}

func TestUpdateUser_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.UpdateUser(context.Background(), &models.User{ID: 42, Name: "x", Email: "x@x.com", Status: models.StatusActive})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com")

	b.Email = "A@X.com"
	err := repo.UpdateUser(context.Background(), b)

	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestTouchLastLogin_OnlyMovesForward(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "A", "a@x.com")
	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.TouchLastLogin(ctx, user.ID, later))
	require.NoError(t, repo.TouchLastLogin(ctx, user.ID, later.Add(-time.Hour)))

	stored, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.Equal(t, later, *stored.LastLoginAt)
}

func TestConsumeVerificationToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "A", "a@x.com",
		testutil.WithStatus(models.StatusUnverified), testutil.WithToken("tok"))

	user, err := repo.ConsumeVerificationToken(ctx, email.HashToken("tok"))

	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.Empty(t, user.VerificationTokenHash)

	stored, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Empty(t, stored.VerificationTokenHash)

	_, err = repo.ConsumeVerificationToken(ctx, email.HashToken("tok"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerificationToken_BlockedStaysBlocked(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "A", "a@x.com",
		testutil.WithStatus(models.StatusBlocked), testutil.WithToken("tok"))

	user, err := repo.ConsumeVerificationToken(ctx, email.HashToken("tok"))

	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, user.Status)

	stored, err := repo.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, stored.Status)
	assert.Empty(t, stored.VerificationTokenHash)
}

func TestConsumeVerificationToken_Empty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.ConsumeVerificationToken(context.Background(), "")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	a := testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com", testutil.WithStatus(models.StatusUnverified))
	c := testutil.NewTestUser(t, repo, "C", "c@x.com")

	n, err := repo.SetStatus(ctx, []int64{a.ID, b.ID, 404}, models.StatusBlocked)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for id, want := range map[int64]models.Status{a.ID: models.StatusBlocked, b.ID: models.StatusBlocked, c.ID: models.StatusActive} {
		u, err := repo.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, u.Status)
	}
}

func TestSetStatus_OnlyFrom(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	blocked := testutil.NewTestUser(t, repo, "A", "a@x.com", testutil.WithStatus(models.StatusBlocked))
	active := testutil.NewTestUser(t, repo, "B", "b@x.com")

	n, err := repo.SetStatus(ctx, []int64{blocked.ID, active.ID}, models.StatusActive, models.StatusBlocked)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetStatus_Empty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	n, err := repo.SetStatus(context.Background(), nil, models.StatusBlocked)

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteUsers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	a := testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com")

	n, err := repo.DeleteUsers(ctx, []int64{a.ID, 404})

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetUserByID(ctx, a.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetUserByID(ctx, b.ID)
	assert.NoError(t, err)
}

// manyIDs returns more ids than one SQLite statement can bind, with the
// given real ids at both ends.
func manyIDs(first, last int64) []int64 {
	ids := []int64{first}
	for i := int64(0); i < 40000; i++ {
		ids = append(ids, 1_000_000+i)
	}
	return append(ids, last)
}

func TestSetStatus_LargeSelection(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	a := testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com")

	n, err := repo.SetStatus(ctx, manyIDs(a.ID, b.ID), models.StatusBlocked, models.StatusActive)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	for _, id := range []int64{a.ID, b.ID} {
		u, err := repo.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBlocked, u.Status)
	}
}

func TestDeleteUsers_LargeSelection(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	a := testutil.NewTestUser(t, repo, "A", "a@x.com")
	b := testutil.NewTestUser(t, repo, "B", "b@x.com")

	n, err := repo.DeleteUsers(ctx, manyIDs(a.ID, b.ID))

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestDeleteUsersByStatus(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "A", "a@x.com", testutil.WithStatus(models.StatusUnverified))
	testutil.NewTestUser(t, repo, "B", "b@x.com", testutil.WithStatus(models.StatusUnverified))
	keep := testutil.NewTestUser(t, repo, "C", "c@x.com")

	n, err := repo.DeleteUsersByStatus(ctx, models.StatusUnverified)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeleteUsersByStatus(ctx, models.StatusUnverified)
	require.NoError(t, err)
	assert.Zero(t, n)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, keep.ID, users[0].ID)
}
