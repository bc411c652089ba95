package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

// scenarioSchema compiles the embedded schema once.
func scenarioSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaValue = v.LookupPath(cue.ParsePath("#Scenario"))
		schemaErr = schemaValue.Err()
	})
	return schemaCtx, schemaValue, schemaErr
}

// schemaMu serializes use of schemaCtx, which is not safe for concurrent use.
var schemaMu sync.Mutex

// checkSchema validates a generically decoded scenario document against
// #Scenario.
func checkSchema(doc any) error {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, schema, err := scenarioSchema()
	if err != nil {
		return err
	}

	v := schema.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %s", cueerrors.Details(err, nil))
	}
	return nil
}
