// Package provision sequences the per-family firmware load of an attached
// controller.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplab/fsm"

	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/channel"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/chipset"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/firmware"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/logging"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/negotiate"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/protocol"
	"github.com/AppleQCAWireless/QCABluetoothFirmware/internal/transfer"
)

// Device is an attached controller ready to be provisioned.
type Device interface {
	channel.Transport
	Reset(ctx context.Context) error
	SetConfiguration(ctx context.Context) error
	OpenInterface(ctx context.Context) error
	Close() error
}

// Machine states and events outside the per-step states.
const (
	stateIdle   = "idle"
	stateDone   = "done"
	stateFailed = "failed"

	eventNext = "next"
	eventFail = "fail"
)

// Provisioner loads firmware into one controller.
type Provisioner struct {
	dev    Device
	chip   chipset.Chip
	repo   firmware.Repository
	cfg    Config
	logger *slog.Logger
}

// New creates a provisioner for dev, identified as chip, loading images
// from repo.
func New(dev Device, chip chipset.Chip, repo firmware.Repository, opts ...Option) *Provisioner {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Provisioner{
		dev:    dev,
		chip:   chip,
		repo:   repo,
		cfg:    cfg,
		logger: logging.For(cfg.Logger, logging.ComponentProvision).With("chip", chip.String()),
	}
}

// session is the state shared by the steps of one run.
type session struct {
	dev    Device
	chip   chipset.Chip
	cfg    Config
	neg    *negotiate.Negotiator
	eng    *transfer.Engine
	sel    *firmware.Selector
	logger *slog.Logger

	state negotiate.State
	ath3k *protocol.Ath3KVersion
	qca   *protocol.QCAVersion
	info  chipset.DeviceInfo
	soc   *protocol.SoCVersion
}

// Provision runs the family sequence to completion or to the first failed
// mandatory step. The device is closed before it returns.
func (p *Provisioner) Provision(ctx context.Context) (*Report, error) {
	report := &Report{Chip: p.chip}
	defer func() {
		if cerr := p.dev.Close(); cerr != nil {
			p.logger.Warn("close failed", "err", cerr)
		}
	}()

	steps := stepsFor(p.chip, p.cfg)
	if steps == nil {
		report.Err = protocol.Errorf(protocol.KindChipUnsupported, "provision", "no load sequence for chip %v", p.chip)
		return report, report.Err
	}

	ch := channel.New(p.dev, channel.WithTimeout(p.cfg.Timeout), channel.WithLogger(p.cfg.Logger))
	s := &session{
		dev:    p.dev,
		chip:   p.chip,
		cfg:    p.cfg,
		neg:    negotiate.New(ch, p.cfg.Logger),
		eng:    transfer.New(ch, p.cfg.Logger, p.cfg.Progress),
		sel:    firmware.NewSelector(p.repo, p.cfg.Logger),
		logger: p.logger,
	}

	machine := newMachine(steps, p.logger)
	p.logger.Info("provisioning started", "family", p.chip.Family(), "steps", len(steps))

	for _, st := range steps {
		if err := machine.Event(ctx, eventNext); err != nil {
			report.Err = fmt.Errorf("enter %s: %w", st.name, err)
			return report, report.Err
		}

		res := s.run(ctx, st)
		report.Steps = append(report.Steps, res)
		if res.Outcome == OutcomeFailed {
			_ = machine.Event(context.WithoutCancel(ctx), eventFail)
			report.Err = fmt.Errorf("%s: %w", st.name, res.Err)
			return report, report.Err
		}
	}

	if err := machine.Event(ctx, eventNext); err != nil {
		report.Err = fmt.Errorf("finish: %w", err)
		return report, report.Err
	}
	p.logger.Info("provisioning finished", "loaded", report.Loaded())
	return report, nil
}

// newMachine chains idle, one state per step and done; every step state can
// fail.
func newMachine(steps []step, logger *slog.Logger) *fsm.FSM {
	events := make(fsm.Events, 0, 2*len(steps)+1)
	src := stateIdle
	for _, st := range steps {
		events = append(events,
			fsm.EventDesc{Name: eventNext, Src: []string{src}, Dst: st.name},
			fsm.EventDesc{Name: eventFail, Src: []string{st.name}, Dst: stateFailed},
		)
		src = st.name
	}
	events = append(events, fsm.EventDesc{Name: eventNext, Src: []string{src}, Dst: stateDone})

	return fsm.NewFSM(stateIdle, events, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			logger.Debug("state change", "from", e.Src, "to", e.Dst)
		},
	})
}

// skipError marks a step whose work was already done on the device.
type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	return "skipped: " + e.reason
}

func skip(reason string) error {
	return &skipError{reason: reason}
}

func (s *session) run(ctx context.Context, st step) StepResult {
	start := time.Now()
	s.logger.Info("step started", "step", st.name)

	err := st.run(ctx, s)
	res := StepResult{Name: st.name, Duration: time.Since(start)}

	var sk *skipError
	switch {
	case err == nil:
		res.Outcome = OutcomeDone
		s.logger.Info("step done", "step", st.name, "elapsed", res.Duration)
	case errors.As(err, &sk):
		res.Outcome = OutcomeSkipped
		res.Detail = sk.reason
		s.logger.Warn("step skipped", "step", st.name, "reason", sk.reason)
	case st.optional:
		res.Outcome = OutcomeWarned
		res.Err = err
		s.logger.Warn("optional step failed", "step", st.name, "err", err)
	default:
		res.Outcome = OutcomeFailed
		res.Err = err
		s.logger.Error("step failed", "step", st.name, "kind", protocol.KindOf(err), "err", err)
	}
	return res
}
