package models

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Server — декларативное описание WireGuard-интерфейса и его ключевой пары.
// Приватный ключ хранится только шифрованным; инвариант «сервер не
// сохраняется без ключей» обеспечивает repo.ServerStore.Save.
type Server struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:100" json:"name"`
	Endpoint string `gorm:"size:255;index" json:"endpoint"` // vpn.example.com:51820
	Address  string `gorm:"size:43" json:"address"`         // 10.0.0.1/24

	PrivateKeyEncrypted string `gorm:"type:text" json:"-"`
	PublicKey           string `gorm:"size:255" json:"public_key"`

	Interface       string `gorm:"size:10;default:wg0" json:"interface"`
	UplinkInterface string `gorm:"size:15;default:eth0" json:"uplink_interface"`
	Port            int    `gorm:"default:51820" json:"port"`

	DNS        string `gorm:"size:255;default:8.8.8.8,8.8.4.4" json:"dns"`
	AllowedIPs string `gorm:"size:255;default:0.0.0.0/0" json:"allowed_ips"`

	IsActive            bool `gorm:"index" json:"is_active"`
	MTU                 int  `gorm:"default:1420" json:"mtu"`
	PersistentKeepalive int  `gorm:"default:25" json:"persistent_keepalive"`
}

// DefaultMTU — значение, при котором строка MTU в конфиге опускается.
const DefaultMTU = 1420

func (s *Server) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Endpoint)
}

// HasKeys: оба ключа на месте (приватный — в шифрованном виде).
func (s *Server) HasKeys() bool {
	return strings.TrimSpace(s.PrivateKeyEncrypted) != "" && strings.TrimSpace(s.PublicKey) != ""
}

// ValidateCIDR проверяет адрес вида 10.0.0.1/24 (IPv4 или IPv6).
func ValidateCIDR(value string) error {
	if _, err := netip.ParsePrefix(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("enter a valid IP address with CIDR (e.g., 10.10.10.1/24): %w", err)
	}
	return nil
}

// ServerConfig — производный словарь конфигурации сервера
// (кэшируется под server-config:{id}).
type ServerConfig struct {
	ID                  uint   `json:"id"`
	Name                string `json:"name"`
	Endpoint            string `json:"endpoint"`
	Address             string `json:"server_address"`
	PublicKey           string `json:"public_key"`
	Interface           string `json:"interface"`
	Port                int    `json:"port"`
	DNS                 string `json:"dns"`
	AllowedIPs          string `json:"allowed_ips"`
	MTU                 int    `json:"mtu"`
	PersistentKeepalive int    `json:"persistent_keepalive"`
	IsActive            bool   `json:"is_active"`
}

// Config — чистая проекция Server → ServerConfig (без кэша и БД).
func (s *Server) Config() ServerConfig {
	return ServerConfig{
		ID:                  s.ID,
		Name:                s.Name,
		Endpoint:            s.Endpoint,
		Address:             s.Address,
		PublicKey:           s.PublicKey,
		Interface:           s.Interface,
		Port:                s.Port,
		DNS:                 s.DNS,
		AllowedIPs:          s.AllowedIPs,
		MTU:                 s.MTU,
		PersistentKeepalive: s.PersistentKeepalive,
		IsActive:            s.IsActive,
	}
}
