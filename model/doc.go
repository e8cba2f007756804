// Package model defines the tool-calling oracle abstraction used by agents.
// The orchestration layer treats the model as an opaque, stateless function
// from (instructions, conversation, tool specs) to either tool invocation
// requests or a final answer; provider adapters live in subpackages.
package model
