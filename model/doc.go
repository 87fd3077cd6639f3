// Package model defines the inference capability boundary of AgentMatrix:
// a minimal Model interface (single-shot Invoke with per-call options) plus
// provider adapters under model/anthropic and model/openai and a MockModel
// for tests. It also hosts the tolerant structured-output extractor that
// pulls a bounded JSON block out of free-form model text.
package model
