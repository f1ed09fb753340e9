// Package tool holds the tool registry that the tool-dispatch node calls into.
//
// A Registry is built once from a fixed set of tools and is read-only after
// that. Each tool's argument schema is compiled with kin-openapi at
// construction time and every call is validated against it before the tool
// runs.
//
// Registry.Invoke never fails: unknown tools, invalid arguments, tool errors,
// panics and per-call timeouts all come back as a Result whose content starts
// with "Error:" so the model can see what went wrong on its next turn.
//
//	weather := tool.NewTypedTool("get_weather", "current weather for a city",
//		map[string]any{
//			"type":       "object",
//			"properties": map[string]any{"city": map[string]any{"type": "string"}},
//			"required":   []any{"city"},
//		},
//		func(ctx context.Context, args struct {
//			City string `json:"city"`
//		}) (string, error) {
//			return lookup(ctx, args.City)
//		})
//
//	reg, err := tool.NewRegistry(weather, tool.FromLangchain(tools.Calculator{}))
package tool
