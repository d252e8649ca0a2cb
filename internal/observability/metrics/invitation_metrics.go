// Package metrics exposes application health signals over the Prometheus
// default registry.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	AcceptFlowExisting = "existing"
	AcceptFlowRegister = "register"
)

const (
	RejectReasonInvalidEmail = "invalid_email"
	RejectReasonSelfInvite   = "self_invite"
	RejectReasonMember       = "already_member"
	RejectReasonDuplicate    = "duplicate"
	RejectReasonExpired      = "expired"
	RejectReasonMismatch     = "email_mismatch"
	RejectReasonNotFound     = "not_found"
)

// Config carries the constant labels stamped on every series.
type Config struct {
	ServiceName string
	Environment string
}

// InvitationMetrics tracks the invitation lifecycle funnel.
type InvitationMetrics struct {
	created  *prometheus.CounterVec
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	revoked  prometheus.Counter
	notify   *prometheus.CounterVec
}

var (
	invitationMetricsOnce sync.Once
	invitationMetrics     *InvitationMetrics
)

// Invitation returns the singleton invitation metrics registry.
func Invitation() *InvitationMetrics {
	return InvitationWithConfig(Config{})
}

// InvitationWithConfig returns the singleton invitation metrics registry
// using config labels.
func InvitationWithConfig(cfg Config) *InvitationMetrics {
	invitationMetricsOnce.Do(func() {
		invitationMetrics = newInvitationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return invitationMetrics
}

// ResetInvitationMetricsForTest resets the singleton for tests.
func ResetInvitationMetricsForTest() {
	invitationMetricsOnce = sync.Once{}
	invitationMetrics = nil
}

func newInvitationMetrics(registerer prometheus.Registerer, cfg Config) *InvitationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "huddle"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "huddle_invitations_created_total",
		Help:        "Invitations issued by granted role.",
		ConstLabels: constLabels,
	}, []string{"role"})
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "huddle_invitations_accepted_total",
		Help:        "Invitations redeemed by acceptance flow.",
		ConstLabels: constLabels,
	}, []string{"flow"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "huddle_invitations_rejected_total",
		Help:        "Invitation operations rejected by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	revoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "huddle_invitations_revoked_total",
		Help:        "Invitations withdrawn before acceptance.",
		ConstLabels: constLabels,
	})
	notify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "huddle_invitation_notifications_total",
		Help:        "Invitation email deliveries by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	registerer.MustRegister(
		created,
		accepted,
		rejected,
		revoked,
		notify,
	)

	return &InvitationMetrics{
		created:  created,
		accepted: accepted,
		rejected: rejected,
		revoked:  revoked,
		notify:   notify,
	}
}

// RecordCreated increments the issued counter.
func (m *InvitationMetrics) RecordCreated(role string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(role).Inc()
}

// RecordAccepted increments the redeemed counter.
func (m *InvitationMetrics) RecordAccepted(flow string) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(flow).Inc()
}

// RecordRejected increments the rejection counter.
func (m *InvitationMetrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordRevoked increments the withdrawn counter.
func (m *InvitationMetrics) RecordRevoked() {
	if m == nil {
		return
	}
	m.revoked.Inc()
}

// RecordNotification increments the delivery counter.
func (m *InvitationMetrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notify.WithLabelValues(outcome).Inc()
}
