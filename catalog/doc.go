// Package catalog holds the signature catalog of a native class.
//
// Every exposed operation is registered under its name together with all of
// its overloads. Overloads that differ only by passing convention are
// distinct entries: foo(int, int, int), foo(int*, int*, int*) and
// foo(const int*, ...) can live side by side. Two entries with equivalent
// parameter sequences under one name are rejected with DuplicateSignature,
// as is any pair whose mangled symbols collide.
//
//	cat := catalog.New("NonVirtual")
//	cat.AddField("result", abi.Int)
//	cat.Constructor()
//	cat.Method("foo", abi.Int, abi.Int, abi.Int, abi.Int)
//	cat.Virtual("get_python_member", abi.Int)
//	cat.Destructor(false)
//	cat.Seal()
//
// Constructors are registered under the unqualified class name and the
// destructor under "~Class". Virtual methods receive vtable slots in
// registration order.
//
// Catalogs can also be loaded from YAML manifests with LoadManifest.
package catalog
