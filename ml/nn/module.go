// Package nn - Module, Hooks und Attention-Markierung
//
// Dieses Modul enthaelt:
// - Module/ForwardFunc: Grundvertrag aller Netzwerk-Bausteine
// - Container: explizite Kind-Module fuer den Baum-Durchlauf
// - Attention: Faehigkeits-Interface fuer abfangbare Attention-Module
// - Hook: Slot, in den ein Interceptor eingesetzt werden kann
package nn

import (
	"errors"
	"sync"

	"github.com/7blacky7/hypertile/ml"
)

// ErrHookBusy wird zurueckgegeben, wenn bereits ein Interceptor installiert ist
var ErrHookBusy = errors.New("attention hook already intercepted")

// ForwardFunc ist die Forward-Berechnung eines Moduls
type ForwardFunc func(x *ml.Tensor) (*ml.Tensor, error)

// Module ist ein Baustein mit einer Forward-Berechnung
type Module interface {
	Forward(x *ml.Tensor) (*ml.Tensor, error)
}

// Named ist ein Modul mit seinem Pfad im Netzwerk (z.B. "mid_block.attentions.0")
type Named struct {
	Name   string
	Module Module
}

// Container wird von Modulen implementiert, die ihre Kinder selbst aufzaehlen.
// Namen sind relativ zum Container.
type Container interface {
	Children() []Named
}

// Attention markiert Module, deren Forward abgefangen werden darf.
// Die Markierung wird beim Bau des Netzwerks vergeben, nicht per Typname.
type Attention interface {
	Module
	AttentionHook() *Hook

	// IsCrossAttention meldet, ob Keys/Values aus einem zweiten Tensor stammen
	IsCrossAttention() bool
}

// Interceptor umschliesst die originale Forward-Berechnung next
type Interceptor func(x *ml.Tensor, next ForwardFunc) (*ml.Tensor, error)

// Hook ist der Interceptor-Slot eines Attention-Moduls.
// Der Nullwert ist einsatzbereit; ohne Interceptor laeuft next direkt.
type Hook struct {
	mu sync.RWMutex
	fn Interceptor
}

// AttentionHook gibt den Hook selbst zurueck, damit eingebettete Hooks
// das Attention-Interface erfuellen
func (h *Hook) AttentionHook() *Hook {
	return h
}

// Install setzt fn als Interceptor; ein zweiter Interceptor wird abgelehnt
func (h *Hook) Install(fn Interceptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fn != nil {
		return ErrHookBusy
	}
	h.fn = fn
	return nil
}

// Remove entfernt den Interceptor und meldet, ob einer installiert war
func (h *Hook) Remove() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	installed := h.fn != nil
	h.fn = nil
	return installed
}

// Installed meldet, ob gerade ein Interceptor aktiv ist
func (h *Hook) Installed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fn != nil
}

// Call fuehrt x durch den Interceptor oder, falls keiner aktiv ist, direkt durch next
func (h *Hook) Call(x *ml.Tensor, next ForwardFunc) (*ml.Tensor, error) {
	h.mu.RLock()
	fn := h.fn
	h.mu.RUnlock()

	if fn == nil {
		return next(x)
	}
	return fn(x, next)
}
