// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gohl7gateway implements an outbound HL7 v2 results gateway: building
ORU^R01 wire text from structured clinical input, delivering it over
HTTP(S), MLLP or SFTP, and keeping an append-only audit trail of every
attempt.

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-hl7gateway/pkg/gateway      - Send orchestrator (the main entry point)
	github.com/sirosfoundation/go-hl7gateway/pkg/hl7          - HL7 v2.5 message validation and serialization
	github.com/sirosfoundation/go-hl7gateway/pkg/provider     - HTTP, MLLP and SFTP transmission providers and their factory
	github.com/sirosfoundation/go-hl7gateway/pkg/storage      - Audit log store (in-memory and MongoDB backends)
	github.com/sirosfoundation/go-hl7gateway/pkg/transmission - Request/result value types and the provider error
	github.com/sirosfoundation/go-hl7gateway/internal/config  - YAML and environment configuration

# Quick Start

To send one results message over HTTPS and audit the attempt:

	store := storage.NewMemoryStore()
	factory := provider.NewFactory(provider.Dependencies{
	    HTTPClient: provider.NewHTTPClient(nil),
	})

	gw, err := gateway.New(gateway.Config{Factory: factory, Store: store})
	if err != nil {
	    log.Fatal(err)
	}

	result, err := gw.Handle(ctx, &gateway.SendCommand{
	    Endpoint: "https://lis.example.com/hl7",
	    Protocol: transmission.ProtocolHTTPS,
	    Source:   "lab-west",
	    Message:  input, // hl7.BuildInput with patient + observations
	})

Every Handle call, success or failure, writes exactly one audit entry; the
returned result always carries the attempt id and, when the write
succeeded, the audit log id.
*/
package gohl7gateway
