package detect

import (
	"context"
	"regexp"

	"mercator-hq/callisto/pkg/exchange"
	"mercator-hq/callisto/pkg/model"
)

// VPNName is the name of the VPN gateway detector.
const VPNName = "vpn-gateway"

// danaInfo matches path-rewriting gateway URLs. The canonical directory sits
// before the DanaInfo token, the host and optional ",Flag[=value]" pairs
// follow it and the canonical file comes after the "+".
var danaInfo = regexp.MustCompile(
	`^(https?://[^/?#]+)/([^?#]*?),DanaInfo=([A-Za-z0-9.-]+)((?:,[^+]*)?)\+(.*)$`)

type vpn struct {
	known Known
}

// NewVPN returns the detector for DanaInfo path-rewriting VPN gateways.
func NewVPN(known Known) Detector {
	d := &vpn{known: known}
	return Detector{Name: VPNName, Detect: d.detect}
}

func (d *vpn) detect(ctx context.Context, ex *exchange.Exchange) (*model.Proxy, error) {
	m := danaInfo.FindStringSubmatch(ex.URL)
	if m == nil {
		return nil, nil
	}
	// %a absorbs the flags so rewritten URLs for other hosts carry none.
	template := escape(m[1]) + "/%d,DanaInfo=%h%a+%f"

	host := model.NormalizeHost(m[3])
	if d.known.OwnerOf(host) != nil {
		return nil, nil
	}
	// New hosts behind a known gateway are left to association.
	if _, _, err := d.known.ToCanonical(ex.URL, true); err == nil {
		return nil, nil
	}
	return model.New(template, true, false, host)
}
