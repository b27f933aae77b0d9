package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Платформы клиента (фиксированный набор).
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
	PlatformMacOS   = "macos"
)

var Platforms = []string{
	PlatformAndroid, PlatformIOS, PlatformWindows, PlatformLinux, PlatformMacOS,
}

func ValidPlatform(p string) bool {
	for _, v := range Platforms {
		if v == p {
			return true
		}
	}
	return false
}

// Peer — клиентская идентичность VPN. ServerID может быть пустым:
// тогда пир относится к серверу по умолчанию (резолвится на чтении).
// Удаление сервера с пирами запрещено (protect-on-delete в ServerStore).
type Peer struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"size:100" json:"name"`
	Email string `gorm:"size:255;index" json:"email"`

	ServerID *uint `gorm:"index" json:"server_id"`

	PublicKey           string `gorm:"size:255" json:"public_key"`
	PrivateKeyEncrypted string `gorm:"type:text" json:"-"`

	AllowedIP string `gorm:"size:43;index" json:"allowed_ip"` // туннельный адрес пира
	IsActive  bool   `gorm:"index" json:"is_active"`

	// Переопределения; пустая строка — брать значение сервера.
	AllowedIPs     string `gorm:"size:255;default:0.0.0.0/0" json:"allowed_ips"`
	DNS            string `gorm:"size:255;default:8.8.8.8,8.8.4.4" json:"dns"`
	ServerEndpoint string `gorm:"size:255" json:"server_endpoint"`

	Platform string `gorm:"size:20;default:linux" json:"platform"`
	QRPath   string `gorm:"size:255" json:"qr_path"`
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Email)
}

// HasPublicKey: исторические данные содержат "-" как плейсхолдер пустого ключа.
func (p *Peer) HasPublicKey() bool {
	k := strings.TrimSpace(p.PublicKey)
	return k != "" && k != "-"
}

// Фоллбэки ниже — чистые: принимают уже зарезолвленный сервер (может быть
// nil), никогда не ходят в БД/кэш и никогда не возвращают ошибку.

func (p *Peer) EffectiveEndpoint(srv *Server) string {
	if p.ServerEndpoint != "" {
		return p.ServerEndpoint
	}
	if srv != nil {
		return srv.Endpoint
	}
	return ""
}

func (p *Peer) EffectiveDNS(srv *Server) string {
	if p.DNS != "" {
		return p.DNS
	}
	if srv != nil {
		return srv.DNS
	}
	return ""
}

func (p *Peer) EffectiveAllowedIPs(srv *Server) string {
	if p.AllowedIPs != "" {
		return p.AllowedIPs
	}
	if srv != nil {
		return srv.AllowedIPs
	}
	return ""
}

// PeerSnapshot — сериализуемый срез активного пира для кэша active-peers.
type PeerSnapshot struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PublicKey      string `json:"public_key"`
	AllowedIP      string `json:"allowed_ip"`
	ServerID       *uint  `json:"server_id"`
	ServerEndpoint string `json:"server_endpoint"`
	Platform       string `json:"platform"`
}
