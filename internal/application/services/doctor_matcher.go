package services

import (
	"sort"
	"strings"

	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	apperrors "github.com/sociodent/sociodent/backend/pkg/errors"
)

// MatchWeights are the tunable constants of the scoring function
type MatchWeights struct {
	AreaBonus                 float64
	SpecializationBonus       float64
	LoadPenaltyPerAppointment float64
}

// DefaultMatchWeights returns +10 for a home visit in the doctor's area,
// +5 for a specialization inferred from symptoms and -1 per confirmed
// appointment the doctor already has that day.
func DefaultMatchWeights() MatchWeights {
	return MatchWeights{
		AreaBonus:                 10,
		SpecializationBonus:       5,
		LoadPenaltyPerAppointment: 1,
	}
}

type specialtyKeywords struct {
	specialization string
	keywords       []string
}

// Ordered so inference output is stable.
var defaultSpecialtyKeywords = []specialtyKeywords{
	{"endodontist", []string{"root canal", "toothache", "tooth pain", "sensitivity", "abscess", "pulp"}},
	{"orthodontist", []string{"braces", "aligner", "crooked", "misaligned", "overbite", "underbite", "gap between"}},
	{"periodontist", []string{"gum", "bleeding", "gingivitis", "periodontal", "receding"}},
	{"pediatric dentist", []string{"child", "kid", "baby teeth", "milk teeth", "toddler"}},
	{"oral surgeon", []string{"wisdom", "extraction", "implant", "jaw", "fracture"}},
	{"prosthodontist", []string{"denture", "crown", "bridge", "missing tooth", "missing teeth"}},
	{"cosmetic dentist", []string{"whitening", "veneer", "smile", "stain", "discolor"}},
}

// DoctorMatcher ranks doctors for an appointment. It is pure: no I/O and no shared state.
type DoctorMatcher struct {
	weights  MatchWeights
	keywords []specialtyKeywords
}

// NewDoctorMatcher creates a matcher with the given weights
func NewDoctorMatcher(weights MatchWeights) *DoctorMatcher {
	return &DoctorMatcher{
		weights:  weights,
		keywords: defaultSpecialtyKeywords,
	}
}

// Weights returns the matcher's scoring constants
func (m *DoctorMatcher) Weights() MatchWeights {
	return m.weights
}

// CheckDoctor returns nil when doctor may take the appointment, otherwise a
// DOCTOR_NOT_APPROVED or SCHEDULE_CONFLICT error.
func (m *DoctorMatcher) CheckDoctor(appointment *entities.Appointment, doctor *entities.Doctor) error {
	if !doctor.IsApproved() {
		return apperrors.NewDoctorNotApprovedError(doctor.ID, string(doctor.Status))
	}
	return m.CheckSchedule(appointment, doctor)
}

// CheckSchedule verifies only the weekly schedule, ignoring approval
func (m *DoctorMatcher) CheckSchedule(appointment *entities.Appointment, doctor *entities.Doctor) error {
	weekday, err := appointment.Weekday()
	if err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := doctor.Schedule.CheckAvailability(weekday, appointment.Time); err != nil {
		return apperrors.NewScheduleConflictError("doctor " + doctor.ID + ": " + err.Error())
	}
	return nil
}

// FindEligibleDoctors keeps approved doctors whose schedule covers the
// requested weekday and time, outside any break. Pool order is preserved.
// Area is deliberately not a filter.
func (m *DoctorMatcher) FindEligibleDoctors(appointment *entities.Appointment, pool []*entities.Doctor) ([]*entities.Doctor, error) {
	weekday, err := appointment.Weekday()
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	eligible := make([]*entities.Doctor, 0, len(pool))
	for _, d := range pool {
		if d == nil || !d.IsApproved() {
			continue
		}
		if d.Schedule.CheckAvailability(weekday, appointment.Time) != nil {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}

// ScoreCandidates scores each candidate and sorts by total descending, then
// fewer confirmed appointments on the date, then doctor ID ascending.
// confirmed maps doctor ID to confirmed appointment count on the requested date.
func (m *DoctorMatcher) ScoreCandidates(appointment *entities.Appointment, candidates []*entities.Doctor, confirmed map[string]int) []entities.ScoredDoctor {
	if len(candidates) == 0 {
		return nil
	}

	wanted := m.InferSpecializations(appointment.Symptoms)
	if pref := normalizeSpecialization(appointment.PreferredSpecialization); pref != "" {
		wanted = append(wanted, pref)
	}

	scored := make([]entities.ScoredDoctor, len(candidates))
	for i, d := range candidates {
		scored[i] = entities.ScoredDoctor{
			Doctor: d,
			Score:  m.score(appointment, d, wanted, confirmed[d.ID]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Score.ConfirmedCount != b.Score.ConfirmedCount {
			return a.Score.ConfirmedCount < b.Score.ConfirmedCount
		}
		return a.Doctor.ID < b.Doctor.ID
	})

	return scored
}

// Rank composes FindEligibleDoctors and ScoreCandidates
func (m *DoctorMatcher) Rank(appointment *entities.Appointment, pool []*entities.Doctor, confirmed map[string]int) ([]entities.ScoredDoctor, error) {
	eligible, err := m.FindEligibleDoctors(appointment, pool)
	if err != nil {
		return nil, err
	}
	return m.ScoreCandidates(appointment, eligible, confirmed), nil
}

func (m *DoctorMatcher) score(appointment *entities.Appointment, d *entities.Doctor, wanted []string, confirmedCount int) entities.MatchScore {
	s := entities.MatchScore{
		Eligible:       true,
		TimeAvailable:  true,
		ConfirmedCount: confirmedCount,
	}

	if appointment.ConsultationType == entities.ConsultationHome {
		area := entities.NormalizeArea(appointment.Area)
		if area != "" && area == entities.NormalizeArea(d.Area) {
			s.AreaBonus = m.weights.AreaBonus
		}
	}

	specialization := normalizeSpecialization(d.Specialization)
	for _, w := range wanted {
		if specialization != "" && specialization == w {
			s.SpecializationBonus = m.weights.SpecializationBonus
			break
		}
	}

	s.LoadPenalty = m.weights.LoadPenaltyPerAppointment * float64(confirmedCount)
	s.Total = s.AreaBonus + s.SpecializationBonus - s.LoadPenalty
	return s
}

// InferSpecializations maps symptom text to specializations via the keyword table
func (m *DoctorMatcher) InferSpecializations(symptoms string) []string {
	text := strings.ToLower(symptoms)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	for _, entry := range m.keywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				out = append(out, entry.specialization)
				break
			}
		}
	}
	return out
}

func normalizeSpecialization(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
