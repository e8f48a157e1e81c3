// Package authdemo provides deterministic demo adapters for the sample
// auth_v1 policy shipped in testdata. They implement the port/outbound
// contracts but are a worked example, not part of the engine's core path.
package authdemo

// Flatten maps a nested request payload (account.available, risk.score,
// context.is_card_present, ...) onto the flat auth_v1 variable namespace.
// Fields already present at the top level pass through unchanged.
func Flatten(nested map[string]any) map[string]any {
	out := make(map[string]any)

	for _, k := range []string{"amount", "avail", "limit", "risk", "vel1h", "mcc", "cnp"} {
		if v, ok := nested[k]; ok {
			if _, isMap := v.(map[string]any); isMap {
				continue // a nested object (e.g. risk{score,...}) is unpacked below
			}
			out[k] = v
		}
	}

	account, _ := nested["account"].(map[string]any)
	risk, _ := nested["risk"].(map[string]any)
	ctx, _ := nested["context"].(map[string]any)

	if account != nil {
		if v, ok := account["available"]; ok {
			setDefault(out, "avail", v)
		}
		if v, ok := account["credit_limit"]; ok {
			setDefault(out, "limit", v)
		}
	}

	if risk != nil {
		if v, ok := risk["score"]; ok {
			setDefault(out, "risk", v)
		}
		if v, ok := risk["velocity_1h"]; ok {
			setDefault(out, "vel1h", v)
		}
	} else if v, ok := nested["risk"]; ok {
		setDefault(out, "risk", v)
	}

	if ctx != nil {
		if v, ok := ctx["mcc"]; ok {
			setDefault(out, "mcc", v)
		}
		if v, ok := ctx["is_card_present"].(bool); ok {
			setDefault(out, "cnp", !v)
		}
	}

	return out
}

func setDefault(m map[string]any, key string, value any) {
	if _, exists := m[key]; !exists {
		m[key] = value
	}
}
