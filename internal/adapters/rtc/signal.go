// Package rtc validates WebRTC negotiation payloads that the session relays
// between participants. Media never passes through this service.
package rtc

import (
	"fmt"
	"strings"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

const (
	defaultMaxSDPLen       = 64 << 10
	defaultMaxCandidateLen = 1024
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// ICEServers turns configured URLs into the list handed to clients on join.
func ICEServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return DefaultWebRTCConfig().ICEServers
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

type Validator struct {
	MaxSDPLen int
}

func (v Validator) ValidateSignal(p domain.SignalPayload) error {
	switch p.Kind {
	case domain.SignalOffer, domain.SignalAnswer:
		_, err := v.ParseSDP(p.Kind, p.SDP)
		return err
	case domain.SignalCandidate:
		_, err := ParseCandidate(p)
		return err
	default:
		return domain.Invalid(fmt.Sprintf("unknown signal kind %q", p.Kind))
	}
}

// ParseSDP checks that raw is a well-formed offer or answer with at least one
// media section.
func (v Validator) ParseSDP(kind domain.SignalKind, raw string) (*sdp.SessionDescription, error) {
	limit := v.MaxSDPLen
	if limit <= 0 {
		limit = defaultMaxSDPLen
	}
	if strings.TrimSpace(raw) == "" {
		return nil, domain.Invalid("empty sdp")
	}
	if len(raw) > limit {
		return nil, domain.Invalid("sdp too large")
	}
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(string(kind)), SDP: raw}
	if desc.Type == webrtc.SDPTypeUnknown {
		return nil, domain.Invalid(fmt.Sprintf("bad sdp type %q", kind))
	}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return nil, domain.Invalid("malformed sdp: " + err.Error())
	}
	if len(parsed.MediaDescriptions) == 0 {
		return nil, domain.Invalid("sdp has no media sections")
	}
	return parsed, nil
}

// ParseCandidate converts a relayed candidate into pion's init form.
func ParseCandidate(p domain.SignalPayload) (webrtc.ICECandidateInit, error) {
	c := strings.TrimSpace(p.Candidate)
	if c == "" {
		return webrtc.ICECandidateInit{}, domain.Invalid("empty candidate")
	}
	if len(c) > defaultMaxCandidateLen {
		return webrtc.ICECandidateInit{}, domain.Invalid("candidate too large")
	}
	// candidate:<foundation> <component> <transport> <priority> <address> <port> typ <type>
	fields := strings.Fields(strings.TrimPrefix(c, "a="))
	if len(fields) < 8 || !strings.HasPrefix(fields[0], "candidate:") || fields[6] != "typ" {
		return webrtc.ICECandidateInit{}, domain.Invalid("malformed candidate")
	}
	return webrtc.ICECandidateInit{
		Candidate:     c,
		SDPMid:        p.SDPMid,
		SDPMLineIndex: p.SDPMLineIndex,
	}, nil
}
