// Package main checks that a revised API document stays backward compatible
// with a published one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"estatehub/docs"

	"gopkg.in/yaml.v3"
)

// builtinSpec selects the document compiled into the server.
const builtinSpec = "builtin"

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

type operation struct {
	Responses map[string]struct{}
	// Required holds "in:name" for every required parameter.
	Required map[string]struct{}
	Secured  bool
}

type parsedSpec struct {
	Paths map[string]map[string]operation
}

func main() {
	basePath := flag.String("base", "", "published swagger document (yaml or json)")
	revisionPath := flag.String("revision", builtinSpec, "revised swagger document, or \"builtin\"")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: apicompat -base <path> [-revision <path|builtin>]")
		os.Exit(2)
	}

	baseSpec, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
		os.Exit(1)
	}
	var revisionSpec parsedSpec
	if *revisionPath == builtinSpec {
		revisionSpec, err = parseSpec([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revisionSpec, err = loadFile(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load revision spec: %v\n", err)
		os.Exit(1)
	}

	issues := compare(baseSpec, revisionSpec)
	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("api compatibility check passed")
}

func loadFile(path string) (parsedSpec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedSpec{}, err
	}
	return parseSpec(raw)
}

// parseSpec reads swagger YAML or JSON; JSON is valid YAML.
func parseSpec(raw []byte) (parsedSpec, error) {
	doc := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return parsedSpec{}, err
	}

	pathsRaw, ok := doc["paths"]
	if !ok {
		return parsedSpec{}, errors.New("missing top-level paths field")
	}
	pathsMap, ok := toMap(pathsRaw)
	if !ok {
		return parsedSpec{}, errors.New("paths is not an object")
	}
	globalSecurity := len(toSlice(doc["security"])) > 0

	spec := parsedSpec{Paths: make(map[string]map[string]operation)}
	for pathKey, pathEntry := range pathsMap {
		pathOpsRaw, ok := toMap(pathEntry)
		if !ok {
			continue
		}

		ops := make(map[string]operation)
		for methodKey, methodEntry := range pathOpsRaw {
			methodLower := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[methodLower]; !supported {
				continue
			}
			methodMap, ok := toMap(methodEntry)
			if !ok {
				continue
			}
			ops[methodLower] = parseOperation(methodMap, globalSecurity)
		}
		if len(ops) > 0 {
			spec.Paths[pathKey] = ops
		}
	}
	return spec, nil
}

func parseOperation(m map[string]interface{}, globalSecurity bool) operation {
	op := operation{
		Responses: make(map[string]struct{}),
		Required:  make(map[string]struct{}),
		Secured:   globalSecurity,
	}
	if responses, ok := toMap(m["responses"]); ok {
		for code := range responses {
			normalized := strings.ToLower(strings.TrimSpace(code))
			if normalized != "" {
				op.Responses[normalized] = struct{}{}
			}
		}
	}
	for _, p := range toSlice(m["parameters"]) {
		param, ok := toMap(p)
		if !ok {
			continue
		}
		if required, _ := param["required"].(bool); required {
			op.Required[fmt.Sprintf("%v:%v", param["in"], param["name"])] = struct{}{}
		}
	}
	if sec, exists := m["security"]; exists {
		op.Secured = len(toSlice(sec)) > 0
	}
	return op
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func toSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

// compare lists the changes in revision that would break a client of base.
func compare(base, revision parsedSpec) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			name := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s", name))
				continue
			}

			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", name, strings.ToUpper(code)))
				}
			}
			for param := range revOp.Required {
				if _, ok := baseOp.Required[param]; !ok {
					issues = append(issues, fmt.Sprintf("new required parameter: %s -> %s", name, param))
				}
			}
			if revOp.Secured && !baseOp.Secured {
				issues = append(issues, fmt.Sprintf("operation now requires authentication: %s", name))
			}
		}
	}

	sort.Strings(issues)
	return issues
}
