// Package agent contains the core orchestrator responsible for translating
// natural-language questions into executable Python analyses. It coordinates
// prompt construction, code generation, sandboxed execution, and the
// persistence of analysis results.
package agent
