package ingest

import (
	"sort"
	"strings"
)

// Service categories derived from the protocol/port tags of a flow.
const (
	ServiceICMP   = "icmp"
	ServiceSSH    = "ssh"
	ServiceSMTP   = "smtp"
	ServiceDomain = "domain"
	ServiceRTSP   = "rtsp"
	ServiceHTTP   = "http"
	ServiceMail   = "mail"
	ServiceVPN    = "vpn"
	ServiceOther  = "OTHER"
)

// Services lists every category in reporting order.
var Services = []string{
	ServiceICMP,
	ServiceSSH,
	ServiceSMTP,
	ServiceDomain,
	ServiceRTSP,
	ServiceHTTP,
	ServiceMail,
	ServiceVPN,
	ServiceOther,
}

// IsService reports whether name is a known category.
func IsService(name string) bool {
	for _, s := range Services {
		if s == name {
			return true
		}
	}
	return false
}

// ParseServices returns the sorted categories a flow belongs to. When only
// one side carries a proto/port tag that side decides; otherwise both do.
func ParseServices(src, dst string) []string {
	var out []string
	switch {
	case src == dst:
		out = []string{serviceCategory(src)}
	case strings.Contains(src, "/") && !strings.Contains(dst, "/"):
		out = []string{serviceCategory(src)}
	case !strings.Contains(src, "/") && strings.Contains(dst, "/"):
		out = []string{serviceCategory(dst)}
	default:
		a, b := serviceCategory(src), serviceCategory(dst)
		out = []string{a}
		if b != a {
			out = append(out, b)
		}
	}
	sort.Strings(out)
	return out
}

// HasService reports whether the flow is tagged with service. An empty
// service matches every flow.
func (f Flow) HasService(service string) bool {
	if service == "" {
		return true
	}
	for _, s := range ParseServices(f.SrcService, f.DstService) {
		if s == service {
			return true
		}
	}
	return false
}

func serviceCategory(v string) string {
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(v, "ICMP"):
		return ServiceICMP
	case lower == "tcp/ssh":
		return ServiceSSH
	case lower == "tcp/smtp":
		return ServiceSMTP
	case strings.HasSuffix(v, "/domain"):
		return ServiceDomain
	case strings.HasSuffix(v, "/rtsp"):
		return ServiceRTSP
	case strings.Contains(v, "/http"):
		return ServiceHTTP
	case strings.Contains(v, "/imap"), strings.Contains(v, "/pop"):
		return ServiceMail
	case strings.Contains(v, "/l2f"):
		return ServiceVPN
	default:
		return ServiceOther
	}
}
