package wg

import (
	"fmt"
	"strings"

	"wgfleet/internal/models"
)

// RenderServerConf — чистая детерминированная сборка <iface>.conf:
// секция [Interface] и по одному блоку [Peer] на каждый пир в порядке
// входного списка. Одинаковый вход — побайтно одинаковый выход
// (на этом держится идемпотентность записи файла).
func RenderServerConf(srv *models.Server, privateKey string, peers []models.Peer) string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", srv.Address)
	fmt.Fprintf(&b, "ListenPort = %d\n", srv.Port)
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	if srv.DNS != "" {
		fmt.Fprintf(&b, "DNS = %s\n", srv.DNS)
	}
	if srv.MTU != 0 && srv.MTU != models.DefaultMTU {
		fmt.Fprintf(&b, "MTU = %d\n", srv.MTU)
	}

	for i := range peers {
		p := &peers[i]
		b.WriteString("\n[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", p.AllowedIP)
		if srv.PersistentKeepalive > 0 {
			fmt.Fprintf(&b, "PersistentKeepalive = %d\n", srv.PersistentKeepalive)
		}
	}
	return b.String()
}

// RenderClientConf — клиентский конфиг пира (отдаётся read-only API;
// QR-кодирование и гайды по установке — вне этого сервиса). srv может
// быть nil: тогда серверные поля просто опускаются.
func RenderClientConf(p *models.Peer, privateKey string, srv *models.Server) string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s\n", p.AllowedIP)
	if dns := p.EffectiveDNS(srv); dns != "" {
		fmt.Fprintf(&b, "DNS = %s\n", dns)
	}

	b.WriteString("\n[Peer]\n")
	if srv != nil {
		fmt.Fprintf(&b, "PublicKey = %s\n", srv.PublicKey)
	}
	if ep := p.EffectiveEndpoint(srv); ep != "" {
		fmt.Fprintf(&b, "Endpoint = %s\n", ep)
	}
	if ips := p.EffectiveAllowedIPs(srv); ips != "" {
		fmt.Fprintf(&b, "AllowedIPs = %s\n", ips)
	}
	if srv != nil && srv.PersistentKeepalive > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", srv.PersistentKeepalive)
	}
	return b.String()
}
