package bootstrap

import (
	"context"
	"fmt"

	appconfig "github.com/wolfman30/opd-frontdesk/internal/config"
	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/internal/doctors"
	"github.com/wolfman30/opd-frontdesk/internal/notify"
	"github.com/wolfman30/opd-frontdesk/internal/observability/metrics"
	"github.com/wolfman30/opd-frontdesk/internal/opd"
	"github.com/wolfman30/opd-frontdesk/internal/patients"
	"github.com/wolfman30/opd-frontdesk/internal/roster"
	"github.com/wolfman30/opd-frontdesk/internal/voice"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// FrontDesk is a running desk and the roster watches feeding it.
type FrontDesk struct {
	Desk    *opd.Desk
	Doctors *doctors.Service

	doctorRoster  *roster.Watcher[doctors.Doctor]
	patientRoster *roster.Watcher[patients.Patient]
}

// BuildFrontDesk starts the roster watches and assembles the desk. email may
// be nil to disable confirmations; m may be nil to disable metrics.
func BuildFrontDesk(ctx context.Context, cfg *appconfig.Config, store docstore.Store, email notify.EmailSender, m *metrics.FrontdeskMetrics, logger *logging.Logger) (*FrontDesk, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("bootstrap: document store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	doctorRoster := roster.NewWatcher(store, doctors.Collection, doctors.FromChild,
		roster.WithLogger(logger), roster.WithRefreshHook(m.ObserveRosterRefresh))
	patientRoster := roster.NewWatcher(store, patients.Collection, patients.FromChild,
		roster.WithLogger(logger), roster.WithRefreshHook(m.ObserveRosterRefresh))
	if err := doctorRoster.Start(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap: watch doctors: %w", err)
	}
	if err := patientRoster.Start(ctx); err != nil {
		doctorRoster.Stop()
		return nil, fmt.Errorf("bootstrap: watch patients: %w", err)
	}

	submitterOpts := []opd.SubmitterOption{opd.WithSubmissionObserver(m)}
	if email != nil {
		submitterOpts = append(submitterOpts, opd.WithConfirmationSender(notify.NewBookingConfirmer(email, cfg.HospitalName, logger)))
	}

	desk := opd.NewDesk(opd.DeskConfig{
		Doctors:   doctorRoster,
		Patients:  patientRoster,
		Submitter: opd.NewSubmitter(store, logger, submitterOpts...),
		Interpreter: voice.NewInterpreter(
			voice.WithPolicy(voice.ParsePolicy(cfg.VoicePolicy)),
			voice.WithPhonePolicy(voice.ParsePhonePolicy(cfg.VoicePhonePolicy)),
			voice.WithObserver(m),
		),
		Matcher:   patients.NewMatcher(cfg.SuggestMinChars),
		VoiceMode: voice.ParseMode(cfg.VoiceMode),
		Observer:  m,
		Logger:    logger,
	})

	return &FrontDesk{
		Desk:          desk,
		Doctors:       doctors.NewService(store, logger),
		doctorRoster:  doctorRoster,
		patientRoster: patientRoster,
	}, nil
}

// Stop ends the roster watches.
func (f *FrontDesk) Stop() {
	f.doctorRoster.Stop()
	f.patientRoster.Stop()
}
