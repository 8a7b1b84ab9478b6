package wasm

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/internal/imports"
)

// instantiateHostModules registers one host module per import module name the
// bindings refer to, exporting each bound shim under the guest's import name.
func instantiateHostModules(ctx context.Context, rt wazero.Runtime, bindings []imports.Binding, env *imports.Env, logger *zap.Logger) error {
	byModule := make(map[string][]imports.Binding)
	for _, b := range bindings {
		byModule[b.Import.Module] = append(byModule[b.Import.Module], b)
	}

	names := make([]string, 0, len(byModule))
	for name := range byModule {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		builder := rt.NewHostModuleBuilder(name)
		for _, b := range byModule[name] {
			builder.NewFunctionBuilder().
				WithGoModuleFunction(b.GoFunc(env), b.Shim.Params, b.Shim.Results).
				WithName(b.Shim.Key).
				Export(b.Import.Name)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return err
		}

		logger.Debug("Host module instantiated",
			zap.String("module", name),
			zap.Int("functions", len(byModule[name])),
		)
	}

	return nil
}
