package classify

import (
	"strings"

	"confixr/pkg/model"
)

// Input 待分类的错误文本
type Input struct {
	Message string
	Stack   string
}

type rule struct {
	patterns []string
	result   model.Classification
}

// 规则按优先级排列，命中即停：更靠前的诊断更具体。
// 例如 CORS 失败的报文往往同时包含 "failed to fetch"，必须先于 NETWORK 判定。
var ruleTable = []rule{
	{
		patterns: []string{
			"cors",
			"cross-origin",
			"has been blocked by cors policy",
			"access-control-allow-origin",
			"preflight",
			"no 'access-control-allow-origin'",
			"preflight request doesn't pass",
			"request header field authorization",
		},
		result: model.Classification{
			Category: model.CategoryCORS,
			Cause:    "Cross-origin request blocked by server policy",
			Hints: []string{
				"Ensure backend sets Access-Control-Allow-Origin",
				"Match protocol, domain, and port (no http/https mix)",
				"Handle OPTIONS preflight requests on server",
				"Avoid wildcards when sending credentials/cookies",
			},
		},
	},
	{
		patterns: []string{
			"content security policy",
			"violates the following content security policy directive",
			"refused to load the script",
			"refused to connect",
			"blocked by csp",
		},
		result: model.Classification{
			Category: model.CategoryCSP,
			Cause:    "Request blocked by Content Security Policy",
			Hints: []string{
				"Update script-src / connect-src directives",
				"Add domain to CSP or use hashed scripts",
				"Avoid inline scripts unless using nonce/hash",
				"Check extension or devtools injected scripts",
			},
		},
	},
	{
		patterns: []string{
			"failed to load",
			"mime",
			"text/html is not a supported mime type",
			"was served with an incorrect content-type",
			"refused to execute script",
			"expected 'application/javascript'",
		},
		result: model.Classification{
			Category: model.CategoryMIME,
			Cause:    "Resource served with incorrect Content-Type",
			Hints: []string{
				"Serve JS as application/javascript",
				"Serve CSS as text/css",
				"Verify CDN / reverse proxy headers",
				"Check index.html mistakenly returned for JS files",
			},
		},
	},
	{
		patterns: []string{
			"net::",
			"failed to fetch",
			"dns",
			"timed out",
			"connection refused",
			"server ip address could not be found",
		},
		result: model.Classification{
			Category: model.CategoryNetwork,
			Cause:    "Network failure or unreachable resource",
			Hints: []string{
				"Verify URL / base path",
				"Check VPN / proxy / adblock interference",
				"Ensure HTTPS certificate validity",
				"Confirm server is online",
			},
		},
	},
	{
		patterns: []string{
			"undefined",
			"is not a function",
			"cannot read properties of",
			"cannot read property",
			"null",
			"typeerror",
			"referenceerror",
		},
		result: model.Classification{
			Category: model.CategoryJSRuntime,
			Cause:    "Runtime exception during execution",
			Hints: []string{
				"Check null / undefined values before access",
				"Verify imports and module loading",
				"Ensure function binding / context",
				"Guard optional fields (?. operator)",
			},
		},
	},
	{
		patterns: []string{"react", "hydration", "hook", "render"},
		result: model.Classification{
			Category: model.CategoryReact,
			Cause:    "React runtime or hydration error",
			Hints: []string{
				"Ensure server + client markup matches",
				"Avoid accessing window during SSR",
				"Check state / hook dependency ordering",
			},
		},
	},
	{
		patterns: []string{"angular", "zone", "template parse"},
		result: model.Classification{
			Category: model.CategoryAngular,
			Cause:    "Angular runtime / template issue",
			Hints: []string{
				"Validate template bindings",
				"Check async pipe + lifecycle states",
			},
		},
	},
	{
		patterns: []string{"vite", "webpack", "hmr"},
		result: model.Classification{
			Category: model.CategoryBuildTool,
			Cause:    "Dev bundler / hot-reload error",
			Hints: []string{
				"Restart dev server",
				"Clear cache / node_modules",
				"Verify module path resolution",
			},
		},
	},
}

var unknown = model.Classification{
	Category: model.CategoryUnknown,
	Cause:    "Unclassified error",
	Hints: []string{
		"Open DevTools to inspect full stacktrace",
		"Check network tab & request headers",
		"Verify environment / build config",
	},
}

// Classify 对错误文本做规则分类，永不失败，无规则命中时返回 UNKNOWN
func Classify(in Input) model.Classification {
	msg := in.Message
	if msg == "" {
		msg = in.Stack
	}
	msg = strings.ToLower(msg)

	for i := range ruleTable {
		if contains(msg, ruleTable[i].patterns) {
			return ruleTable[i].result
		}
	}
	return unknown
}

func contains(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
