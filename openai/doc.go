// Package openai defines the wire types of the OpenAI-compatible API
// surface: chat completions, audio transcriptions, the model list, and the
// error body. Every request type validates itself into the project's
// classified errors so handlers can map a failed validation straight to a
// 400 with the field named in the message.
//
// The types mirror the OpenAI platform schemas only as far as the gateway
// implements them; fields the backend never reads are still accepted and
// carried so off-the-shelf clients work unmodified.
package openai
