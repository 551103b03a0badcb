package object

// BuiltinClass enumerates the well-known classes the VM registers at
// boot (spec §6.2), each with a fixed ObjectId so native code can
// reference it by tag instead of a name lookup.
type BuiltinClass int

const (
	BNone BuiltinClass = iota
	BBool
	BInteger
	BFloat
	BString
	BBytes
	BList
	BRange
	BClass // the class of classes
	BFn    // the class of functions
	BCode
	BModule
	BInnerIterator
	BException
	BHashMap
	BHashSet
	BThread
	BFuture
	numBuiltinClasses
)

func (b BuiltinClass) String() string {
	names := [...]string{
		"None", "Bool", "Integer", "Float", "String", "Bytes", "List",
		"Range", "Class", "Fn", "Code", "Module", "InnerIterator",
		"Exception", "HashMap", "HashSet", "Thread", "Future",
	}
	if int(b) < len(names) {
		return names[b]
	}
	return "Unknown"
}

// NumBuiltinClasses is the count of well-known classes registered at boot.
func NumBuiltinClasses() int { return int(numBuiltinClasses) }
