// Package baseline tracks vulnerability findings across runs.
//
// A baseline file records the findings of a reference run. Comparing a new
// run against it splits the current findings into new, fixed and unchanged,
// which is narrated after verification. The comparison is informational:
// the exception list alone decides whether a run passes.
//
// # Baseline File Format
//
//	{
//	  "version": "1.0",
//	  "created_at": "2026-01-15T10:30:00Z",
//	  "updated_at": "2026-01-20T14:45:00Z",
//	  "run_id": "5f0c...",
//	  "site": "ci-run",
//	  "findings": [
//	    {
//	      "fingerprint": "9a4c51e2d3b0f817",
//	      "title": "TLS Server Supports TLS version 1.0",
//	      "address": "10.0.0.1",
//	      "severity": "severe",
//	      "first_seen": "2026-01-15T10:30:00Z"
//	    }
//	  ]
//	}
//
// # Finding Identity
//
// A finding is identified by a murmur3 fingerprint of its address and
// title, so the same vulnerability on two hosts is tracked twice and a
// finding keeps its identity when its severity is re-graded.
package baseline
