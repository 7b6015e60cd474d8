package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
	"github.com/r2r72/x-mkt-v1/internal/testsupport"
)

type team struct {
	admin, mia, sam task.Actor
}

func seedTeam(t *testing.T, env *testsupport.Env) team {
	t.Helper()
	owner, company := env.SeedTenant(t, "owner@acme.test", "Acme")
	mia := env.SeedMember(t, company.ID, "mia@acme.test", "Mia", models.RoleMarketer)
	sam := env.SeedMember(t, company.ID, "sam@acme.test", "Sam", models.RoleSales)
	return team{
		admin: task.Actor{ID: owner.ID, CompanyID: company.ID, Role: models.RoleAdmin},
		mia:   task.Actor{ID: mia.ID, CompanyID: company.ID, Role: models.RoleMarketer},
		sam:   task.Actor{ID: sam.ID, CompanyID: company.ID, Role: models.RoleSales},
	}
}

func TestCreateAndList(t *testing.T) {
	env := testsupport.New(t)
	tm := seedTeam(t, env)
	ctx := context.Background()

	due := time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)
	forMia, err := env.Tasks.Create(ctx, tm.admin, task.Input{
		Title: " Draft the spring newsletter ", Priority: "High", AssignedTo: tm.mia.ID, DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Draft the spring newsletter", forMia.Title)
	assert.Equal(t, models.TaskPending, forMia.Status)
	assert.Equal(t, models.PriorityHigh, forMia.Priority)
	assert.Equal(t, "Mia", forMia.AssigneeName)
	assert.Equal(t, tm.admin.ID, forMia.AssignedBy)

	forSam, err := env.Tasks.Create(ctx, tm.admin, task.Input{Title: "Call back Initech", AssignedTo: tm.sam.ID})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, forSam.Priority)

	all, err := env.Tasks.List(ctx, tm.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := env.Tasks.List(ctx, tm.mia)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, forMia.ID, mine[0].ID)
	assert.Equal(t, "Mia", mine[0].AssigneeName)
	require.NotNil(t, mine[0].DueDate)
	assert.True(t, due.Equal(*mine[0].DueDate))
}

func TestCreate_Rejections(t *testing.T) {
	env := testsupport.New(t)
	tm := seedTeam(t, env)
	outsider, _ := env.SeedTenant(t, "hank@globex.test", "Globex")
	ctx := context.Background()

	_, err := env.Tasks.Create(ctx, tm.mia, task.Input{Title: "x", AssignedTo: tm.sam.ID})
	assert.ErrorIs(t, err, task.ErrForbidden)

	tests := []struct {
		name string
		in   task.Input
	}{
		{"no title", task.Input{Title: " ", AssignedTo: tm.mia.ID}},
		{"unknown priority", task.Input{Title: "x", Priority: "urgent", AssignedTo: tm.mia.ID}},
		{"no assignee", task.Input{Title: "x"}},
		{"assignee without profile", task.Input{Title: "x", AssignedTo: "nobody"}},
		{"assignee in another company", task.Input{Title: "x", AssignedTo: outsider.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Tasks.Create(ctx, tm.admin, tt.in)
			assert.ErrorIs(t, err, task.ErrInvalidTask)
		})
	}

	_, err = env.Tasks.List(ctx, task.Actor{ID: "fallback", Role: models.RoleSales})
	assert.ErrorIs(t, err, models.ErrNoTenant)
}

func TestSetStatus(t *testing.T) {
	env := testsupport.New(t)
	tm := seedTeam(t, env)
	ctx := context.Background()

	tk, err := env.Tasks.Create(ctx, tm.admin, task.Input{Title: "Write copy", AssignedTo: tm.mia.ID})
	require.NoError(t, err)

	got, err := env.Tasks.SetStatus(ctx, tm.mia, tk.ID, models.TaskInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, got.Status)

	_, err = env.Tasks.SetStatus(ctx, tm.sam, tk.ID, models.TaskDeclined)
	assert.ErrorIs(t, err, task.ErrNotFound, "other members do not see the task")

	_, err = env.Tasks.SetStatus(ctx, tm.mia, tk.ID, "archived")
	assert.ErrorIs(t, err, task.ErrInvalidTask)

	got, err = env.Tasks.SetStatus(ctx, tm.admin, tk.ID, models.TaskCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, got.Status)

	mine, err := env.Tasks.List(ctx, tm.mia)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.TaskCompleted, mine[0].Status)
}

func TestDelete(t *testing.T) {
	env := testsupport.New(t)
	tm := seedTeam(t, env)
	ctx := context.Background()

	tk, err := env.Tasks.Create(ctx, tm.admin, task.Input{Title: "Write copy", AssignedTo: tm.mia.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, env.Tasks.Delete(ctx, tm.mia, tk.ID), task.ErrForbidden)
	require.NoError(t, env.Tasks.Delete(ctx, tm.admin, tk.ID))
	assert.ErrorIs(t, env.Tasks.Delete(ctx, tm.admin, tk.ID), task.ErrNotFound)

	all, err := env.Tasks.List(ctx, tm.admin)
	require.NoError(t, err)
	assert.Empty(t, all)
}
