package browser

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockableTypes are the resource types ELEMSHOT_BLOCKED_RESOURCES may
// name. They keep animating or streaming after load and move pixels
// between the geometry read and the screenshot. Images, stylesheets and
// fonts are what gets captured and cannot be blocked.
var blockableTypes = map[string]proto.NetworkResourceType{
	"Media":       proto.NetworkResourceTypeMedia,
	"Script":      proto.NetworkResourceTypeScript,
	"WebSocket":   proto.NetworkResourceTypeWebSocket,
	"EventSource": proto.NetworkResourceTypeEventSource,
	"Ping":        proto.NetworkResourceTypePing,
}

// slotHosts serve ad slots and consent frames that are filled in after the
// page reports ready, resizing whatever surrounds them.
var slotHosts = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"adservice.google.com",
	"amazon-adsystem.com",
	"adnxs.com",
	"criteo.com",
	"taboola.com",
	"outbrain.com",
	"consensu.org",
	"cookielaw.org",
}

// slotRequestTypes are the requests a slot uses to fill itself in. A
// Document on a slot host is the slot's iframe.
var slotRequestTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeDocument: true,
	proto.NetworkResourceTypeScript:   true,
	proto.NetworkResourceTypeImage:    true,
	proto.NetworkResourceTypeXHR:      true,
	proto.NetworkResourceTypeFetch:    true,
}

// blockedTypes maps configured names to resource types, dropping names
// that are unknown or not blockable.
func blockedTypes(names []string) map[proto.NetworkResourceType]bool {
	out := make(map[proto.NetworkResourceType]bool, len(names))
	for _, name := range names {
		rt, ok := blockableTypes[name]
		if !ok {
			slog.Warn("ignoring resource type that cannot be blocked", "type", name)
			continue
		}
		out[rt] = true
	}
	return out
}

// isSlotHost reports whether host is one of slotHosts or a subdomain of one.
func isSlotHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, h := range slotHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// shouldBlock decides one request.
func shouldBlock(rt proto.NetworkResourceType, rawURL string, types map[proto.NetworkResourceType]bool, blockSlots bool) bool {
	if types[rt] {
		return true
	}
	if !blockSlots || !slotRequestTypes[rt] {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && isSlotHost(u.Hostname())
}

// setupHijack aborts requests that would shift layout while elements are
// measured. Returns nil when nothing is blocked; Session.Close stops the
// router otherwise.
func setupHijack(page *rod.Page, typeNames []string, blockSlots bool) *rod.HijackRouter {
	types := blockedTypes(typeNames)
	if len(types) == 0 && !blockSlots {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if shouldBlock(h.Request.Type(), h.Request.URL().String(), types, blockSlots) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return router
}
