package gateway

import "github.com/dhi-engine/dhi/pkg/governance"

func testPayload() governance.ContextPayload {
	return governance.ContextPayload{
		RequestID: "req-gateway",
		Attempt:   1,
		Files:     []string{"src/a.py", "src/b.py"},
		Content:   "the governed content",
	}
}
