package ipc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wrale/fantuner/internal/apperr"
	"github.com/wrale/fantuner/internal/hardware"
	"github.com/wrale/fantuner/internal/safety"
)

// dispatch resolves msg.Type against the operation table and returns the
// response envelope. Unknown tags and malformed payloads both yield an
// Error response rather than propagating a panic or closing the
// connection, since a single bad request should not cost the client its
// session.
func (s *Server) dispatch(ctx context.Context, c *connection, msg Message) Message {
	reply := func(t MessageType, payload interface{}) Message {
		return Message{Type: t, RequestID: msg.RequestID, Timestamp: time.Now(), Payload: marshalPayload(payload)}
	}
	fail := func(code apperr.Code, message string) Message {
		return errorMessage(msg.RequestID, code, message)
	}

	switch msg.Type {
	case MsgGetStatus:
		return reply(MsgStatus, s.statusPayload())

	case MsgGetSensors:
		return reply(MsgSensors, SensorsPayload{Sensors: s.adapter.GetSensors()})

	case MsgGetFans:
		return reply(MsgFans, FansPayload{Fans: s.adapter.GetFans()})

	case MsgGetConfig:
		return reply(MsgConfig, ConfigPayload{Config: *s.cfgService.Current()})

	case MsgSetConfig:
		var p SetConfigPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fail(apperr.ConfigInvalid, "malformed SetConfig payload")
		}
		next, err := s.cfgService.ReplaceAll(ctx, &p.Config)
		if err != nil {
			return fail(apperr.CodeOf(err), err.Error())
		}
		s.supervisor.UpdateThresholds(safety.Thresholds{
			EmergencyCPUC:          next.EmergencyCPUC,
			EmergencyGPUC:          next.EmergencyGPUC,
			HysteresisC:            next.EmergencyHysteresisC,
			DefaultMinFanPercent:   next.DefaultMinFanPercent,
			MaxConsecutiveFailures: safety.DefaultMaxConsecutiveFailures,
		})
		return reply(MsgAck, AckPayload{OK: true})

	case MsgSetFanSpeed:
		var p SetFanSpeedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fail(apperr.ConfigInvalid, "malformed SetFanSpeed payload")
		}
		return s.handleSetFanSpeed(ctx, p, reply, fail)

	case MsgSetProfile:
		var p SetProfilePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fail(apperr.ConfigInvalid, "malformed SetProfile payload")
		}
		if _, err := s.cfgService.SetActiveProfile(ctx, p.ProfileID); err != nil {
			return fail(apperr.CodeOf(err), err.Error())
		}
		return reply(MsgAck, AckPayload{OK: true})

	case MsgSubscribeSensors:
		c.setSubscribed(true)
		return reply(MsgAck, AckPayload{OK: true})

	case MsgUnsubscribeSensors:
		c.setSubscribed(false)
		return reply(MsgAck, AckPayload{OK: true})

	default:
		return fail(apperr.FrameInvalid, "unknown message type")
	}
}

func (s *Server) handleSetFanSpeed(ctx context.Context, p SetFanSpeedPayload, reply func(MessageType, interface{}) Message, fail func(apperr.Code, string) Message) Message {
	var target *hardware.FanDevice
	for _, f := range s.adapter.GetFans() {
		if f.ID.Key() == p.FanKey {
			f := f
			target = &f
			break
		}
	}
	if target == nil {
		return fail(apperr.NotFound, "unknown fan")
	}
	if target.Capability != hardware.CapabilityFullControl {
		return fail(apperr.CapabilityDenied, "fan is not under software control")
	}

	ok, warning := s.supervisor.ValidateFanSpeed(p.Percent, *target)
	if !ok {
		return fail(apperr.ConfigInvalid, warning)
	}

	applied, err := s.adapter.SetSpeed(ctx, target.ID, p.Percent)
	if err != nil {
		return fail(apperr.AdapterIo, err.Error())
	}
	if !applied {
		return fail(apperr.CapabilityDenied, "fan rejected the requested speed")
	}

	return reply(MsgAck, AckPayload{OK: true, Message: warning})
}

func (s *Server) statusPayload() StatusPayload {
	status := s.supervisor.Status()
	cfg := s.cfgService.Current()
	profile := cfg.Profiles[cfg.ActiveProfileID]

	return StatusPayload{
		Running:          true,
		Version:          s.version,
		UptimeSeconds:    time.Since(s.start).Seconds(),
		Emergency:        status.State == safety.StateEmergency,
		EmergencyReason:  status.Reason,
		ActiveProfileID:  cfg.ActiveProfileID,
		ActiveProfile:    profile.Name,
		Warnings:         status.ActiveWarnings,
		ConnectedClients: s.clientCount(),
	}
}
