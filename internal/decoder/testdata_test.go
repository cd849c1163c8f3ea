package decoder

import "math/big"

// testStrings maps a hex-encoded (control byte + payload) string value to
// its decoded form. There are no .mmdb fixture files in this tree, so this
// table is built by hand from the control-byte encoding rules in
// DecodeCtrlData/sizeFromCtrlByte rather than read from disk.
var testStrings = map[string]any{
	"40":                             "",
	"4131":                           "1",
	"425475":                         "Tu",
	"434d6574":                       "Met",
	"444d657472":                     "Metr",
	"454d6574726f":                   "Metro",
	"474d6574726f706f":               "Metropo",
	"484d6574726f706f6c":             "Metropol",
	"494d6574726f706f6c69":           "Metropoli",
	"4a4d6574726f706f6c6973":         "Metropolis",
	"4b4d6574726f706f6c697321":       "Metropolis!",
	"4c4d6574726f706f6c69732121":     "Metropolis!!",
	"4d4d6574726f706f6c6973212121":   "Metropolis!!!",
	"4e4d6574726f706f6c697321212131": "Metropolis!!!1",
}

// powBigInt computes base**exp using big.Int, since math/big has no direct
// integer power helper for this depth of test fixture construction.
func powBigInt(base *big.Int, exp uint) *big.Int {
	result := big.NewInt(1)
	b := new(big.Int).Set(base)
	for range exp {
		result.Mul(result, b)
	}
	return result
}
