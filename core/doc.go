/*
The core package contains the definitions of types and functions necessary for the
functionalities of this library to work. Contract statements shared by the breaker,
the registry and the guarded call scope are in this package.

# Command

Command is the type that breakers protect. Indeed, it is just a pointer to an
anonymous function that performs the fallible remote call.

# FaultKind and Fault

FaultKind is a tag categorizing a failure. Errors returned by a command are tagged
by wrapping them in a Fault:

	return core.NewFault("upstream-timeout", err)

KindOf recovers the tag through any number of wrapping layers.

# Classifier

Classifier decides whether a call outcome counts against a breaker. It is built
from the set of fault kinds configured for the breaker. Failures tagged with a
kind outside that set are ignored: they neither trip the circuit nor clear the
failure counter, and they still reach the caller as ordinary errors.
*/
package core
