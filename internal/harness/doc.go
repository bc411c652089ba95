// Package harness loads visual regression scenarios and runs them on the
// dual-pass engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: homepage
//	description: "Landing page and menu"
//	base: https://prod.example.com
//	test: http://localhost:3000
//	options:
//	  width: 1280
//	  threshold: 0.5
//	steps:
//	  - goto: /
//	    screenshot: home
//	  - screenshot: home-strict
//	    threshold: 0
//	  - navigate:
//	      - click: "#accept-cookies"
//	        pass: test
//	  - capture: menu
//	    threshold: 1
//	    interact:
//	      - click: "#menu"
//	      - fill: {selector: "#search", text: "shoes"}
//	      - eval: "window.scrollTo(0, 0)"
//	      - wait: 200ms
//
// Every step is exactly one of:
//
//   - goto (optionally with screenshot): load a path on the pass's host
//   - screenshot (optionally with threshold): capture and compare
//   - navigate: run interactions between settle delays
//   - capture (with interact, optionally threshold): navigate then screenshot
//
// An interaction is exactly one of click, fill, eval or wait. Setting
// pass restricts it to the base or test pass, for pages whose states only
// line up after host-specific clicks.
//
// # Validation
//
// A file is checked in three stages: the embedded CUE schema (types and
// ranges), strict YAML decoding (unknown keys are typos), then the
// semantic rules above.
//
// # Configuration
//
// Options layer from lowest to highest precedence: engine defaults, the
// scenario's options block, then Overrides supplied by the caller
// (normally command-line flags). The same applies to the base and test
// hosts.
package harness
