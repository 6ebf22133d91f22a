// Package rules builds pipeline stages from JSONPath (RFC 9535)
// expressions over codec records.
//
// A grouping expression selects the group key of each record. A rule
// expression is an assertion: a record satisfies it when the expression
// selects at least one non-null node, so filters work as predicates:
//
//	$.user.id               the field is present and not null
//	$.tags[?@ == "vip"]     tags contains "vip"
//	$.items[?@.qty > 0]     some item has a positive quantity
//
// A group passes only when every record satisfies every rule.
package rules
