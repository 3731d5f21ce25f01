package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
)

func TestCalendarServiceEnsureCalendarForCreatesOnce(t *testing.T) {
	repo := newStubCalendarRepo()
	svc := NewCalendarService(repo, nil, nil, nil)
	volunteer := &models.Volunteer{ID: "v-new", Role: models.RoleVolunteerInterview}

	calendar, err := svc.EnsureCalendarFor(context.Background(), nil, volunteer)
	require.NoError(t, err)
	require.NotNil(t, calendar)
	assert.Equal(t, models.CalendarViewWeek, calendar.DefaultView)
	assert.Equal(t, models.DefaultReminderHoursBefore, calendar.ReminderHoursBefore)

	again, err := svc.EnsureCalendarFor(context.Background(), nil, volunteer)
	require.NoError(t, err)
	assert.Equal(t, calendar.ID, again.ID)
	assert.Len(t, repo.created, 1)
}

func TestCalendarServiceEnsureCalendarForGovernanceRemoves(t *testing.T) {
	repo := newStubCalendarRepo(ownerFixture("cal-gil", "v-gil", "Gil", "Roux", models.RoleVolunteerInterview))
	svc := NewCalendarService(repo, nil, nil, nil)

	calendar, err := svc.EnsureCalendarFor(context.Background(), nil, &models.Volunteer{ID: "v-gil", Role: models.RoleVolunteerGovernance})
	require.NoError(t, err)
	assert.Nil(t, calendar)
	assert.Equal(t, []string{"v-gil"}, repo.deleted)
	assert.Empty(t, repo.owners)

	_, err = svc.EnsureCalendarFor(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestCalendarServiceGetMine(t *testing.T) {
	repo := newStubCalendarRepo(
		ownerFixture("cal-ada", "v-ada", "Ada", "Martin", models.RoleVolunteerInterview),
		ownerFixture("cal-bob", "v-bob", "Bob", "Durand", models.RoleVolunteerInterview),
	)
	svc := NewCalendarService(repo, nil, nil, nil)

	mine, err := svc.GetMine(context.Background(), adaPrincipal)
	require.NoError(t, err)
	assert.Equal(t, "cal-ada", mine.ID)
	assert.Equal(t, "Ada Martin", mine.OwnerName())

	acting := staffPrincipal
	acting.ActingAs = "v-bob"
	theirs, err := svc.GetMine(context.Background(), acting)
	require.NoError(t, err)
	assert.Equal(t, "cal-bob", theirs.ID)

	impostor := adaPrincipal
	impostor.ActingAs = "v-bob"
	_, err = svc.GetMine(context.Background(), impostor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GetMine(context.Background(), staffPrincipal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.GetMine(context.Background(), governancePrincipal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestCalendarServiceUpdateSettings(t *testing.T) {
	repo := newStubCalendarRepo(ownerFixture("cal-ada", "v-ada", "Ada", "Martin", models.RoleVolunteerInterview))
	svc := NewCalendarService(repo, nil, nil, nil)

	view := models.CalendarViewMonth
	hours := 48
	updated, err := svc.UpdateSettings(context.Background(), adaPrincipal, "cal-ada", models.UpdateCalendarSettingsRequest{
		DefaultView:         &view,
		ReminderHoursBefore: &hours,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CalendarViewMonth, updated.DefaultView)
	assert.Equal(t, 48, updated.ReminderHoursBefore)
	require.NotNil(t, repo.updated)
	assert.Equal(t, models.DefaultWorkStart, repo.updated.WorkStartTime)
}

func TestCalendarServiceUpdateSettingsRejections(t *testing.T) {
	repo := newStubCalendarRepo(ownerFixture("cal-ada", "v-ada", "Ada", "Martin", models.RoleVolunteerInterview))
	svc := NewCalendarService(repo, nil, nil, nil)

	_, err := svc.UpdateSettings(context.Background(), bobPrincipal, "cal-ada", models.UpdateCalendarSettingsRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	end := tod("07:00")
	_, err = svc.UpdateSettings(context.Background(), adaPrincipal, "cal-ada", models.UpdateCalendarSettingsRequest{WorkEndTime: &end})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "work_end_time")

	hours := 500
	_, err = svc.UpdateSettings(context.Background(), adaPrincipal, "cal-ada", models.UpdateCalendarSettingsRequest{ReminderHoursBefore: &hours})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Fields, "reminder_hours_before")

	_, err = svc.UpdateSettings(context.Background(), staffPrincipal, "missing", models.UpdateCalendarSettingsRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Nil(t, repo.updated)
}
