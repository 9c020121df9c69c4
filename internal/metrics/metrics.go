// Package metrics registers Prometheus metrics for Crewdesk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolverResults counts tenant resolution outcomes by result label
	// (ok, no_auth, no_org, invalid_org, internal_error).
	ResolverResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewdesk",
		Subsystem: "tenant",
		Name:      "resolver_results_total",
		Help:      "Organization context resolution outcomes.",
	}, []string{"result"})

	// OrgSwitches counts active-organization switch outcomes
	// (ok, not_member, internal_error).
	OrgSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewdesk",
		Subsystem: "tenant",
		Name:      "org_switches_total",
		Help:      "Active-organization switch outcomes.",
	}, []string{"result"})

	// AuditWrites counts audit record writes by status (ok, failed).
	AuditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewdesk",
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Audit record write attempts.",
	}, []string{"status"})

	// SecretOperations counts cipher operations by op and status.
	SecretOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crewdesk",
		Subsystem: "secrets",
		Name:      "operations_total",
		Help:      "Secret encrypt/decrypt operations.",
	}, []string{"op", "status"})
)
