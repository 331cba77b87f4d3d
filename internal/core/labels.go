// Package core defines core types.
package core

// Reason label values, used as the `reason` label of the packet counters.
const (
	LabelReasonTranslated   = "translated"
	LabelReasonNotIP        = "not_ip"
	LabelReasonTruncated    = "truncated"
	LabelReasonFragment     = "fragment"
	LabelReasonProtocol     = "protocol"
	LabelReasonHeaderLength = "header_length"
	LabelReasonPort         = "port"
	LabelReasonUrgent       = "urgent"
	LabelReasonOffload      = "offload"
	LabelReasonChecksum     = "checksum"
)
