package tasks

import (
	"errors"
	"time"

	"wgfleet/internal/repo"
	"wgfleet/internal/wg"
)

// Виды задач реконсиляции. Каждая адресуется одним id сущности и
// безопасна к повторному запуску: состояние перечитывается из БД на
// момент исполнения, низлежащие операции идемпотентны.
type Kind string

const (
	KindOnboard    Kind = "onboard"
	KindSyncConfig Kind = "sync-config"
	KindInjectPeer Kind = "inject-peer"
	KindRemovePeer Kind = "remove-peer"
)

// Task — единица работы в очереди.
type Task struct {
	Kind     Kind
	EntityID uint
	// Tombstone заполняется только для KindRemovePeer: строка пира уже
	// удалена, перечитать её по id нельзя, публичный ключ захвачен заранее.
	Tombstone *repo.Tombstone
}

// Result — статусная запись задачи.
type Result struct {
	Status  string // models.TaskStatus*
	Details map[string]any
}

// Policy — явная политика повторов задачи: фиксированная пауза,
// небольшой фиксированный предел попыток, без экспоненты.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicies повторяет исходные границы: онбординг самый терпеливый,
// инъекция в живой интерфейс — самая нетерпеливая (от неё зависит,
// когда пир реально заработает).
func DefaultPolicies() map[Kind]Policy {
	return map[Kind]Policy{
		KindOnboard:    {MaxAttempts: 3, Delay: 10 * time.Second},
		KindSyncConfig: {MaxAttempts: 2, Delay: 10 * time.Second},
		KindInjectPeer: {MaxAttempts: 2, Delay: 5 * time.Second},
		KindRemovePeer: {MaxAttempts: 2, Delay: 5 * time.Second},
	}
}

// Retryable — классификация отказа. Исчезнувшая сущность и отказ границы
// привилегий терминальны; всё остальное считается временным.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, repo.ErrNotFound) {
		return false
	}
	if errors.Is(err, wg.ErrPermissionDenied) {
		return false
	}
	return true
}
