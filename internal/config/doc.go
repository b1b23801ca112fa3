// Package config provides configuration parsing for simgate.
//
// The configuration is stored in simgate.json in the directory the server
// is started from. This package handles loading, saving, defaulting and
// validating it.
//
// # Configuration File Structure
//
//	{
//	  "address": ":8080",
//	  "mode": "multiuser",
//	  "capacity": 4,
//	  "simulatorName": "jLEMS",
//	  "session": {
//	    "maxMessageSize": 1048576,
//	    "writeTimeout": "10s",
//	    "readTimeout": "60s",
//	    "sendQueue": 256,
//	    "messagesPerSecond": 50,
//	    "burst": 100
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "path": "/metrics"
//	  },
//	  "sources": {
//	    "s3Region": "us-east-1",
//	    "httpTimeout": "30s"
//	  },
//	  "tracing": {
//	    "tracerName": "simgate"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Mode:", cfg.Mode)
package config
