package mmdbcore

import "github.com/student/mmdbcore/mmdbdata"

// Decoder provides methods for decoding MaxMind DB data values.
// This interface is passed to UnmarshalMaxMindDB methods to allow
// custom decoding logic that avoids reflection for performance-critical applications.
//
// Types implementing Unmarshaler will automatically use custom decoding logic
// instead of reflection when used with Reader.Lookup, providing better performance
// for performance-critical applications.
//
// Example:
//
//	type City struct {
//		Names     map[string]string `maxminddb:"names"`
//		GeoNameID uint              `maxminddb:"geoname_id"`
//	}
//
//	func (c *City) UnmarshalMaxMindDB(d *mmdbcore.Decoder) error {
//		mapIter, _, err := d.ReadMap()
//		if err != nil { return err }
//		for key, err := range mapIter {
//			if err != nil { return err }
//			switch string(key) {
//			case "names":
//				names := make(map[string]string)
//				nameIter, _, _ := d.ReadMap()
//				for nameKey, nameErr := range nameIter {
//					if nameErr != nil { return nameErr }
//					value, valueErr := d.ReadString()
//					if valueErr != nil { return valueErr }
//					names[string(nameKey)] = value
//				}
//				c.Names = names
//			case "geoname_id":
//				geoID, err := d.ReadUint32()
//				if err != nil { return err }
//				c.GeoNameID = uint(geoID)
//			default:
//				if err := d.SkipValue(); err != nil { return err }
//			}
//		}
//		return nil
//	}
type Decoder = mmdbdata.Decoder

// Value is a decoded-value view returned by Decoder.DecodeAt and
// Decoder.Resolve: a self-describing data-section entry tagged by Kind, with
// the fields relevant to that Kind populated and the rest left zero.
type Value = mmdbdata.Value

// IteratedValue is one node from Decoder.Iterate's pre-order walk over a
// value's subtree: the decoded value itself and its nesting depth relative
// to the walk's root (the root value is depth 0).
type IteratedValue = mmdbdata.IteratedValue

// Unmarshaler is implemented by types that can unmarshal MaxMind DB data.
// This follows the same pattern as json.Unmarshaler and other Go standard library interfaces.
type Unmarshaler = mmdbdata.Unmarshaler
