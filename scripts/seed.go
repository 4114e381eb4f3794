package main

import (
	"context"
	"os"

	"github.com/sociodent/sociodent/backend/internal/adapters/database"
	"github.com/sociodent/sociodent/backend/internal/adapters/search"
	"github.com/sociodent/sociodent/backend/internal/application/services"
	"github.com/sociodent/sociodent/backend/internal/domain/entities"
	"github.com/sociodent/sociodent/backend/internal/domain/providers"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/postgres"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/clients/typesense"
	"github.com/sociodent/sociodent/backend/internal/infrastructure/observability"
	"github.com/sociodent/sociodent/backend/pkg/config"
)

func weekdays(start, end, breakStart, breakEnd string) entities.WeeklySchedule {
	bs := entities.MustClockTime(breakStart)
	be := entities.MustClockTime(breakEnd)
	day := entities.DaySchedule{
		Available:    true,
		Start:        entities.MustClockTime(start),
		End:          entities.MustClockTime(end),
		SlotDuration: 30,
		BreakStart:   &bs,
		BreakEnd:     &be,
	}
	return entities.WeeklySchedule{
		"monday": day, "tuesday": day, "wednesday": day, "thursday": day, "friday": day,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	observability.InitLogger("sociodent-seed", cfg.Env)
	logger := observability.GetLogger()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	ctx := context.Background()

	var index providers.DoctorIndex
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
		if err := tsClient.InitSchema(ctx, false); err == nil {
			index = search.NewTypesenseAdapter(tsClient)
		}
	}

	if os.Getenv("RESET_DB") == "true" {
		logger.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				appointment_notifications,
				appointment_audit,
				appointments,
				doctor_history,
				doctors
			CASCADE
		`)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to truncate tables")
		}
	}

	doctorService := services.NewDoctorService(database.NewDoctorAdapter(pgClient), index)

	seeds := []struct {
		req     services.RegisterDoctorRequest
		approve bool
	}{
		{services.RegisterDoctorRequest{Name: "Dr. Meera Iyer", Email: "meera.iyer@sociodent.in", Phone: "+919800000101", Specialization: "Orthodontics", Area: "Whitefield", Schedule: weekdays("09:00", "17:00", "13:00", "14:00")}, true},
		{services.RegisterDoctorRequest{Name: "Dr. Arjun Khan", Email: "arjun.khan@sociodent.in", Phone: "+919800000102", Specialization: "Endodontics", Area: "Indiranagar", Schedule: weekdays("10:00", "18:00", "14:00", "15:00")}, true},
		{services.RegisterDoctorRequest{Name: "Dr. Kavya Nair", Email: "kavya.nair@sociodent.in", Phone: "+919800000103", Specialization: "Pediatric Dentistry", Area: "Whitefield", Schedule: weekdays("08:00", "14:00", "11:00", "11:30")}, true},
		{services.RegisterDoctorRequest{Name: "Dr. Rohan Das", Email: "rohan.das@sociodent.in", Phone: "+919800000104", Specialization: "Periodontics", Area: "Koramangala", Schedule: weekdays("09:00", "17:00", "13:00", "14:00")}, true},
		{services.RegisterDoctorRequest{Name: "Dr. Sana Sheikh", Email: "sana.sheikh@sociodent.in", Phone: "+919800000105", Specialization: "Oral Surgery", Area: "Jayanagar", Schedule: weekdays("09:00", "13:00", "11:00", "11:15")}, false},
	}

	for _, s := range seeds {
		doctor, err := doctorService.Register(ctx, s.req)
		if err != nil {
			logger.Error().Err(err).Str("name", s.req.Name).Msg("failed to register doctor")
			continue
		}
		if s.approve {
			if _, err := doctorService.Approve(ctx, doctor.ID, "seed"); err != nil {
				logger.Error().Err(err).Str("doctor_id", doctor.ID).Msg("failed to approve doctor")
				continue
			}
		}
		logger.Info().Str("doctor_id", doctor.ID).Str("name", doctor.Name).Bool("approved", s.approve).Msg("seeded doctor")
	}
}
