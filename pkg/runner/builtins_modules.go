package runner

import (
	"context"

	"github.com/aretw0/aliquot/internal/runtime"
)

type moduleParams struct {
	Module  string  `mapstructure:"module"`
	Celsius float64 `mapstructure:"celsius"`
	Height  float64 `mapstructure:"height"`
}

// moduleStep decodes module params and hands the loaded module to fn.
func moduleStep(params map[string]any, s *runtime.Session, fn func(*runtime.Module, moduleParams) error) error {
	var p moduleParams
	if err := decode(params, &p); err != nil {
		return err
	}
	m, err := s.Module(p.Module)
	if err != nil {
		return err
	}
	return fn(m, p)
}

func setTemperature(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, p moduleParams) error {
		return m.SetTemperature(ctx, p.Celsius)
	})
}

func setLidTemperature(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, p moduleParams) error {
		return m.SetLidTemperature(ctx, p.Celsius)
	})
}

func deactivate(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, _ moduleParams) error {
		return m.Deactivate(ctx)
	})
}

func engage(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, p moduleParams) error {
		return m.Engage(ctx, p.Height)
	})
}

func disengage(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, _ moduleParams) error {
		return m.Disengage(ctx)
	})
}

func openLid(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, _ moduleParams) error {
		return m.OpenLid(ctx)
	})
}

func closeLid(ctx context.Context, s *runtime.Session, params map[string]any) error {
	return moduleStep(params, s, func(m *runtime.Module, _ moduleParams) error {
		return m.CloseLid(ctx)
	})
}
