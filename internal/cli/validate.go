package cli

import (
	"fmt"
	"io"

	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/internal/validator"
	"github.com/aretw0/aliquot/pkg/registry"
	"github.com/aretw0/aliquot/pkg/runner"
)

// Validate parses each protocol file and checks its references. Every
// problem is printed with its path; the error only summarizes.
func Validate(paths []string, out io.Writer) error {
	reg := registry.NewRegistry()
	runner.RegisterBuiltins(reg)

	failed := 0
	for _, path := range paths {
		proto, err := compiler.NewParser().ParseFile(path)
		if err == nil {
			err = validator.Validate(proto, validator.WithCommands(reg.Names()))
		}
		if err == nil {
			fmt.Fprintf(out, "%s: ok\n", path)
			continue
		}
		failed++
		problems := compiler.ValidationErrors(err)
		if len(problems) == 0 {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			continue
		}
		for _, p := range problems {
			fmt.Fprintf(out, "%s: %v\n", path, p)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d protocols failed validation", failed, len(paths))
	}
	return nil
}
