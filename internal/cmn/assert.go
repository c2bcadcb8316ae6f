package cmn

// Assert panics if cond is false. Reserved for invariant violations that
// indicate a programming error, never for expected runtime conditions
// (transport failures, missing files, and the like go through the typed
// errors in errors.go instead).
func Assert(cond bool) {
	if !cond {
		AssertMsg(false, "assertion failed")
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
