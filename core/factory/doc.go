// Package factory builds pluggable backends from configuration. The metrics
// sinks and the decision log stores each keep a Registry keyed by the `type`
// or `backend` string of their config section.
//
//	stores := factory.NewRegistry[logging.LogStore]("decision store")
//	stores.MustRegister("sqlite", func(conf map[string]any) (logging.LogStore, error) {
//	    var c logging.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return logging.NewSQLiteStore(c.Path)
//	})
//	s, err := stores.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "decisions.db"}})
package factory
