// Package fbt decodes IEC 61499 function-block type files (.fbt) into
// validated BlockDefinition records.
//
// Only the parts that matter for event propagation are kept: the type name,
// the declared event inputs and outputs, the named sub-instances of the
// block's network and its event connections. Data connections, algorithms,
// ECC states and layout attributes are ignored. A definition that is missing
// a required attribute fails with a *ParseError instead of carrying empty
// sentinels forward.
package fbt
