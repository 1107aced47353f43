package alerttest

import _ "embed"

// ElasticcSchema is the ELAsTiCC alert schema the service embeds.
//
//go:embed elasticc.avsc
var ElasticcSchema string

// ZTFSchema is a reduced ZTF alert schema with the fields the service reads.
//
//go:embed ztf.avsc
var ZTFSchema string
