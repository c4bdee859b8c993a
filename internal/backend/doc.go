/*
Package backend maps a key-expression namespace onto S3 buckets.

A Volume holds the settings shared by every storage pointed at one endpoint,
together with the executor their store calls run on. Each Storage owns one
bucket and translates key expressions to object keys by stripping its
configured prefix:

	prefix "demo/example", key "demo/example/a/b"  ->  object "a/b"
	prefix "demo/example", key "demo/example"      ->  object "@@none_key@@"

The write timestamp of a value travels in the object metadata under
"timestamp-uhlc"; objects written by older releases under "timestamp_uhlc" are
still read.

GetAllEntries lists the bucket, keeps the keys matching the storage key
expression and issues one HEAD request per survivor concurrently. Entries
whose metadata cannot be read are logged, counted and left out; the listing
itself still succeeds.

Usage:

	vol, err := backend.NewVolumeFromProperties(props)
	if err != nil {
		return err
	}
	defer vol.Close()

	st, err := vol.NewStorage(ctx, storageCfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	entries, err := st.GetAllEntries(ctx)
*/
package backend
