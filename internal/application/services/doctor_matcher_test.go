package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

func ids(scored []entities.ScoredDoctor) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Doctor.ID
	}
	return out
}

func TestFindEligibleDoctors_FiltersByApprovalAndSchedule(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())

	pending := newDoctor("d-pending", "", "")
	pending.Status = entities.DoctorStatusPending
	patient := newDoctor("d-patient", "", "")
	patient.Role = "patient"
	offMonday := newDoctor("d-off", "", "")
	delete(offMonday.Schedule, "monday")
	ok := newDoctor("d-ok", "", "")

	eligible, err := m.FindEligibleDoctors(newAppointment("a1"), []*entities.Doctor{pending, nil, patient, offMonday, ok})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "d-ok", eligible[0].ID)
}

func TestFindEligibleDoctors_BreakAndHourBoundaries(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	pool := []*entities.Doctor{newDoctor("d1", "", "")}

	tests := []struct {
		time     string
		eligible bool
	}{
		{"08:59", false},
		{"09:00", true},
		{"12:59", true},
		{"13:00", false},
		{"13:30", false},
		{"14:00", true},
		{"16:59", true},
		{"17:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			appt := newAppointment("a1")
			appt.Time = entities.MustClockTime(tt.time)
			eligible, err := m.FindEligibleDoctors(appt, pool)
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, len(eligible) == 1)
		})
	}
}

func TestFindEligibleDoctors_InvalidDate(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")
	appt.Date = "03/06/2030"

	_, err := m.FindEligibleDoctors(appt, []*entities.Doctor{newDoctor("d1", "", "")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestScoreCandidates_AreaBonusOnlyForHomeVisits(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	near := newDoctor("d-near", "", "  Koramangala ")
	far := newDoctor("d-far", "", "Indiranagar")

	home := newAppointment("a1")
	home.ConsultationType = entities.ConsultationHome
	home.Area = "koramangala"

	scored := m.ScoreCandidates(home, []*entities.Doctor{far, near}, nil)
	require.Len(t, scored, 2)
	assert.Equal(t, "d-near", scored[0].Doctor.ID)
	assert.Equal(t, 10.0, scored[0].Score.AreaBonus)
	assert.Equal(t, 10.0, scored[0].Score.Total)
	assert.Equal(t, 0.0, scored[1].Score.Total)

	virtual := newAppointment("a2")
	virtual.Area = "koramangala"
	scored = m.ScoreCandidates(virtual, []*entities.Doctor{far, near}, nil)
	assert.Equal(t, 0.0, scored[0].Score.AreaBonus)
	assert.Equal(t, 0.0, scored[1].Score.AreaBonus)
}

func TestScoreCandidates_SpecializationFromSymptoms(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	endo := newDoctor("d-endo", "Endodontist", "")
	ortho := newDoctor("d-ortho", "orthodontist", "")

	appt := newAppointment("a1")
	appt.Symptoms = "Severe toothache since Monday"

	scored := m.ScoreCandidates(appt, []*entities.Doctor{ortho, endo}, nil)
	assert.Equal(t, []string{"d-endo", "d-ortho"}, ids(scored))
	assert.Equal(t, 5.0, scored[0].Score.SpecializationBonus)
	assert.Equal(t, 0.0, scored[1].Score.SpecializationBonus)
}

func TestScoreCandidates_PreferredSpecialization(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")
	appt.PreferredSpecialization = " Pediatric   Dentist "

	scored := m.ScoreCandidates(appt, []*entities.Doctor{
		newDoctor("d1", "general dentist", ""),
		newDoctor("d2", "pediatric dentist", ""),
	}, nil)
	assert.Equal(t, "d2", scored[0].Doctor.ID)
	assert.Equal(t, 5.0, scored[0].Score.Total)
}

func TestScoreCandidates_LoadPenaltyAndTieBreaks(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")

	pool := []*entities.Doctor{
		newDoctor("d-c", "", ""),
		newDoctor("d-b", "", ""),
		newDoctor("d-a", "", ""),
	}
	confirmed := map[string]int{"d-c": 2, "d-b": 0, "d-a": 0}

	scored := m.ScoreCandidates(appt, pool, confirmed)
	assert.Equal(t, []string{"d-a", "d-b", "d-c"}, ids(scored), "equal totals fall back to ID order")
	assert.Equal(t, 2.0, scored[2].Score.LoadPenalty)
	assert.Equal(t, -2.0, scored[2].Score.Total)
	assert.Equal(t, 2, scored[2].Score.ConfirmedCount)
}

func TestScoreCandidates_AreaOutweighsLoad(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")
	appt.ConsultationType = entities.ConsultationHome
	appt.Area = "Whitefield"

	busyLocal := newDoctor("d-local", "", "Whitefield")
	idleRemote := newDoctor("d-remote", "", "Jayanagar")

	scored := m.ScoreCandidates(appt, []*entities.Doctor{idleRemote, busyLocal}, map[string]int{"d-local": 3})
	assert.Equal(t, "d-local", scored[0].Doctor.ID)
	assert.Equal(t, 7.0, scored[0].Score.Total)
}

func TestScoreCandidates_Empty(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	assert.Empty(t, m.ScoreCandidates(newAppointment("a1"), nil, nil))
}

func TestRank_IsDeterministic(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")
	pool := []*entities.Doctor{newDoctor("d3", "", ""), newDoctor("d1", "", ""), newDoctor("d2", "", "")}

	first, err := m.Rank(appt, pool, nil)
	require.NoError(t, err)
	reversed := []*entities.Doctor{pool[2], pool[1], pool[0]}
	second, err := m.Rank(appt, reversed, nil)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}

func TestCheckDoctor(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())
	appt := newAppointment("a1")

	rejected := newDoctor("d1", "", "")
	rejected.Status = entities.DoctorStatusRejected
	assert.True(t, apperrors.IsType(m.CheckDoctor(appt, rejected), apperrors.ErrorTypeDoctorNotApproved))

	appt.Time = entities.MustClockTime("13:15")
	assert.True(t, apperrors.IsType(m.CheckDoctor(appt, newDoctor("d2", "", "")), apperrors.ErrorTypeScheduleConflict))

	appt.Time = entities.MustClockTime("15:00")
	assert.NoError(t, m.CheckDoctor(appt, newDoctor("d2", "", "")))
}

func TestInferSpecializations(t *testing.T) {
	m := services.NewDoctorMatcher(services.DefaultMatchWeights())

	assert.Empty(t, m.InferSpecializations("   "))
	assert.Equal(t, []string{"periodontist"}, m.InferSpecializations("My GUMS are bleeding"))
	assert.Equal(t,
		[]string{"endodontist", "oral surgeon"},
		m.InferSpecializations("tooth pain near my wisdom tooth"),
	)
}
