package wasmmem

import (
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/alexhholmes/pod"
	"github.com/alexhholmes/pod/errors"
)

// Memory adapts a wazero api.Memory to pod views
type Memory struct {
	Mem      api.Memory
	Registry *pod.Registry
}

// Wrap wraps a wazero api.Memory, consulting the default pod registry.
// It returns nil for nil memory.
func Wrap(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem, Registry: pod.Default()}
}

// FromModule wraps the memory exported by mod under name, or the module's
// default memory when name is empty
func FromModule(mod api.Module, name string) (*Memory, error) {
	if mod == nil {
		return nil, errors.NilPointer(errors.PhaseView, "api.Module")
	}
	var mem api.Memory
	if name == "" {
		mem = mod.Memory()
	} else {
		mem = mod.ExportedMemory(name)
	}
	if mem == nil {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Type(mod.Name()).
			Detail("module exports no memory %q", name).
			Build()
	}
	return Wrap(mem), nil
}

// Size returns the current size of the memory in bytes
func (m *Memory) Size() uint32 {
	return m.Mem.Size()
}

func (m *Memory) region(offset, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseView, "linear memory", int(offset), int(length), int(m.Mem.Size()))
	}
	return data, nil
}

// View returns a mutable view over [offset, offset+length) of guest memory
func (m *Memory) View(offset, length uint32) (*pod.View, error) {
	data, err := m.region(offset, length)
	if err != nil {
		return nil, err
	}
	return m.Registry.View(data), nil
}

// ReadOnlyView returns a read-only view over [offset, offset+length)
func (m *Memory) ReadOnlyView(offset, length uint32) (*pod.View, error) {
	data, err := m.region(offset, length)
	if err != nil {
		return nil, err
	}
	return m.Registry.ReadOnlyView(data), nil
}

// Load copies the T at a guest address out of memory. Guest structs follow
// wasm32 layout, so T should use fixed-width fields only.
func Load[T any](m *Memory, addr uint32) (T, error) {
	var zero T
	l, err := m.Registry.Layout(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	v, err := m.ReadOnlyView(addr, uint32(l.Size))
	if err != nil {
		return zero, err
	}
	return pod.TryRead[T](v, 0)
}

// Store copies val into memory at a guest address
func Store[T any](m *Memory, addr uint32, val T) error {
	l, err := m.Registry.Layout(reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	v, err := m.View(addr, uint32(l.Size))
	if err != nil {
		return err
	}
	return pod.TryWrite(v, 0, val)
}
