// Package gcode converts between structured device instructions and the G-code
// lines understood by the motion controller, and explains lines in plain English.
//
// Every verb is registered with its canonical argument order, so encoding is
// deterministic and Decode(Encode(v, a)) returns (v, a) for any argument map
// within the verb's expected set.
package gcode
