package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPResolver はリクエスト元のIPアドレスを決める。
// X-Forwarded-ForとX-Real-IPは、直接の接続元が信頼済みプロキシのときだけ参照する。
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver は信頼済みプロキシのネットワーク一覧からClientIPResolverを生成する。
// 空の場合は常にRemoteAddrを使う。
func NewClientIPResolver(trusted []netip.Prefix) *ClientIPResolver {
	return &ClientIPResolver{trusted: trusted}
}

// ClientIP はリクエスト元のIPアドレスを返す。
// 接続元が信頼済みプロキシなら、X-Forwarded-Forを右から辿って最初の信頼済みでないアドレスを使う。
// X-Forwarded-Forがなければ X-Real-IP、どちらもなければ接続元を使う。
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !c.isTrusted(hop) || i == 0 {
				return hop
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func (c *ClientIPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
