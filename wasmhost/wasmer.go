//go:build wasmer

package wasmhost

import (
	"context"
	"fmt"
	"sort"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Wasmer is a Host backed by wasmer. It has no streaming path, so callers
// buffer the module before instantiating.
//
// WASI streams are inherited from the process; the Stdin, Stdout and Stderr
// fields of the ImportTable are ignored.
type Wasmer struct {
	engine *wasmer.Engine
	store  *wasmer.Store
}

var _ Host = (*Wasmer)(nil)

// NewWasmer creates a wasmer engine and store.
func NewWasmer() (*Wasmer, error) {
	engine := wasmer.NewEngine()
	return &Wasmer{engine: engine, store: wasmer.NewStore(engine)}, nil
}

func (w *Wasmer) Instantiate(ctx context.Context, src []byte, imports ImportTable) (*Result, error) {
	if err := CheckHeader(src); err != nil {
		return nil, err
	}

	module, err := wasmer.NewModule(w.store, src)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	name := imports.Name
	if name == "" {
		name = "main"
	}
	builder := wasmer.NewWasiStateBuilder(name)
	for _, arg := range imports.Args {
		builder = builder.Argument(arg)
	}
	for k, v := range imports.Env {
		builder = builder.Environment(k, v)
	}
	wasiEnv, err := builder.Finalize()
	if err != nil {
		return nil, fmt.Errorf("build WASI state: %w", err)
	}

	importObject, err := wasiEnv.GenerateImportObject(w.store, module)
	if err != nil {
		// Modules that import nothing from WASI have no WASI version.
		importObject = wasmer.NewImportObject()
	}

	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, fmt.Errorf("instantiate: %w", err)
	}

	return &Result{
		Module:   &wasmerModule{name: name, module: module},
		Instance: &wasmerInstance{instance: instance},
	}, nil
}

// Close is a no-op; wasmer objects are released by finalizers.
func (w *Wasmer) Close(ctx context.Context) error { return nil }

type wasmerModule struct {
	name   string
	module *wasmer.Module
}

func (m *wasmerModule) Name() string { return m.name }

func (m *wasmerModule) Exports() []string {
	var names []string
	for _, export := range m.module.Exports() {
		if export.Type().Kind() == wasmer.FUNCTION {
			names = append(names, export.Name())
		}
	}
	sort.Strings(names)
	return names
}

type wasmerInstance struct {
	instance *wasmer.Instance
}

func (i *wasmerInstance) Run(ctx context.Context) error {
	start, err := i.instance.Exports.GetWasiStartFunction()
	if err != nil {
		return fmt.Errorf("module has no %s export: %w", StartFunction, err)
	}
	_, err = start()
	return wasiExitStatus(err)
}

func (i *wasmerInstance) Close(ctx context.Context) error { return nil }
