// Package config defines the resource configuration consumed by the engine
// and loads it from disk.
//
// A configuration file is YAML or JSON and is named *-config.yaml,
// *-config.yml or *-config.json. Files are discovered recursively under
// one or more config directories.
//
// File shape:
//
//	plugin: rest
//	path: /pets/{petId}          # optional root resource
//	resources:
//	  - method: GET
//	    path: /pets/{petId}
//	    pathParams:
//	      petId: "10"            # shorthand for {value: "10", operator: EqualTo}
//	    requestHeaders:
//	      X-Trace:
//	        operator: Exists
//	    requestBody:
//	      jsonPath: $.name
//	      value: Fluffy
//	    eval:
//	      - expression: ${context.request.queryParams.limit}
//	        operator: Matches
//	        value: "[0-9]+"
//	    capture:
//	      petName:
//	        store: pets
//	        key: ${context.request.pathParams.petId}
//	        jsonPath: $.name
//	        phase: RESPONSE_SENT
//	    response:
//	      statusCode: 200
//	      content: '{"id": 10}'
//	system:
//	  stores:
//	    pets:
//	      preloadData:
//	        "10": Fluffy
//
// Loading validates every file against an embedded JSON schema, then
// checks what the schema cannot express: operators, capture phases,
// regular expressions and body queries. Regular expressions and queries are
// compiled once here so that matching never fails on a bad pattern.
package config
