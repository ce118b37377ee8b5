package manifest

import (
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// manifestSchema constrains the shape of a manifest document. Unknown
// top-level keys are allowed so manifests can carry data for other tools.
const manifestSchema = `
#Item: string | {
	name:     string
	source?:  string
	url?:     string
	version?: string
	...
}

#Lists: {
	scoopBuckets?:      [...#Item]
	systemPackages?:    [...#Item]
	packages?:          [...#Item]
	scoopTools?:        [...#Item]
	wingetPackages?:    [...#Item]
	powershellModules?: [...#Item]
	fonts?:             [...#Item]
	miseRuntimes?:      [...#Item]
}

#Manifest: {
	#Lists
	packageManager: "scoop" | "winget" | "apt" | "pacman" | "dnf" | "auto"
	target?:        string
	environment?: {[string]: string}
	dotfiles?: {
		repo:    string & !=""
		branch?: string
	}
	optional?: {
		#Lists
		...
	}
	...
}
`

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error

	// cue values are not safe for concurrent use.
	schemaMu sync.Mutex
)

func compiledSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		root := schemaCtx.CompileString(manifestSchema)
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile manifest schema: %w", err)
			return
		}
		schemaValue = root.LookupPath(cue.ParsePath("#Manifest"))
	})
	return schemaCtx, schemaValue, schemaErr
}

// validateSchema checks a JSON document against the manifest schema and
// returns one message per violation.
func validateSchema(data []byte) []string {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, schema, err := compiledSchema()
	if err != nil {
		return []string{err.Error()}
	}

	doc := ctx.CompileBytes(data)
	if err := doc.Err(); err != nil {
		return details(err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return details(err)
	}
	return nil
}

func details(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		msg := strings.TrimSpace(cueerrors.Details(e, nil))
		if msg != "" {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
